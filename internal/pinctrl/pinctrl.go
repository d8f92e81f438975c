// Package pinctrl shells out to the Raspberry Pi pinctrl tool. It is used
// outside the main GPIO path: to inspect line state before the relay is
// claimed and to park the relay line when no GPIO handle is available.
package pinctrl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

type PinState struct {
	Pin     int
	Mode    string // "ip", "op", "no"
	Pull    string // "pu", "pd", "pn"
	Drive   string // "dh", "dl", ""
	Level   string // "hi", "lo", "--"
	Comment string
}

// High reports whether the line currently reads high.
func (p PinState) High() bool { return p.Level == "hi" }

var pinLineRegex = regexp.MustCompile(`^\s*(\d+):\s+(\S+)\s+(.*?)\s+\|\s+(\S+)\s+//\s+(.*GPIO(\d+).*)$`)

// run executes pinctrl; a var so tests can script the output.
var run = func(args ...string) ([]byte, error) {
	return exec.Command("pinctrl", args...).CombinedOutput()
}

// ParseGet parses `pinctrl get` output into pin states keyed by GPIO number.
func ParseGet(r io.Reader) (map[int]PinState, error) {
	result := make(map[int]PinState)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := pinLineRegex.FindStringSubmatch(scanner.Text())
		if len(matches) != 7 {
			continue
		}

		index, _ := strconv.Atoi(matches[1])
		state := PinState{
			Pin:     index,
			Mode:    matches[2],
			Level:   matches[4],
			Comment: matches[5],
		}
		for _, opt := range strings.Fields(matches[3]) {
			if state.Pull == "" && (opt == "pu" || opt == "pd" || opt == "pn") {
				state.Pull = opt
			} else if state.Drive == "" && (opt == "dh" || opt == "dl") {
				state.Drive = opt
			}
		}
		result[state.Pin] = state
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan pinctrl output: %w", err)
	}
	return result, nil
}

func ReadPin(pin int) (*PinState, error) {
	out, err := run("get", fmt.Sprint(pin))
	if err != nil {
		return nil, fmt.Errorf("pinctrl get %d: %w (output: %s)", pin, err, strings.TrimSpace(string(out)))
	}
	all, err := ParseGet(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	state, ok := all[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not found in pinctrl output", pin)
	}
	return &state, nil
}

// SetPin applies pinctrl set options, e.g. SetPin(17, "op", "pn", "dh").
func SetPin(pin int, opts ...string) error {
	args := append([]string{"set", fmt.Sprint(pin)}, opts...)
	out, err := run(args...)
	if err != nil {
		return fmt.Errorf("pinctrl set %d failed: %w (output: %s)", pin, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ReleaseDrive is the drive option that leaves a relay released.
func ReleaseDrive(activeLow bool) string {
	if activeLow {
		return "dh"
	}
	return "dl"
}

// ParkRelay drives the relay line to its released level.
func ParkRelay(pin int, activeLow bool) error {
	return SetPin(pin, "op", "pn", ReleaseDrive(activeLow))
}

// RelayAsserted reports whether the relay line is an output currently
// driving the relay on.
func RelayAsserted(pin int, activeLow bool) (bool, error) {
	st, err := ReadPin(pin)
	if err != nil {
		return false, err
	}
	if st.Mode != "op" {
		return false, nil
	}
	return st.High() != activeLow, nil
}
