package pinctrl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 2: no    pu | -- // GPIO2 = none
 4: ip    pn | lo // GPIO4 = input
 5: op dh pu | hi // GPIO5 = output
17: op dh pn | hi // GPIO17 = output
26: op dl pn | lo // GPIO26 = output
`

func script(t *testing.T, out string, err error) *[][]string {
	t.Helper()
	var calls [][]string
	orig := run
	run = func(args ...string) ([]byte, error) {
		calls = append(calls, args)
		return []byte(out), err
	}
	t.Cleanup(func() { run = orig })
	return &calls
}

func TestParseGet(t *testing.T) {
	states, err := ParseGet(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, states, 6)

	assert.Equal(t, PinState{Pin: 5, Mode: "op", Pull: "pu", Drive: "dh", Level: "hi", Comment: "GPIO5 = output"}, states[5])
	assert.Equal(t, "--", states[2].Level)
	assert.Equal(t, "dl", states[26].Drive)
	assert.True(t, states[17].High())
}

func TestSetPin_Args(t *testing.T) {
	calls := script(t, "", nil)

	require.NoError(t, ParkRelay(17, true))
	require.NoError(t, ParkRelay(18, false))

	assert.Equal(t, [][]string{
		{"set", "17", "op", "pn", "dh"},
		{"set", "18", "op", "pn", "dl"},
	}, *calls)
}

func TestSetPin_Error(t *testing.T) {
	script(t, "permission denied", errors.New("exit status 1"))
	err := SetPin(17, "op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestRelayAsserted(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		activeLow bool
		want      bool
	}{
		{"active low released", "17: op dh pn | hi // GPIO17 = output", true, false},
		{"active low asserted", "17: op dl pn | lo // GPIO17 = output", true, true},
		{"active high asserted", "17: op dh pn | hi // GPIO17 = output", false, true},
		{"input never asserted", "17: ip    pn | lo // GPIO17 = input", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script(t, tt.line, nil)
			got, err := RelayAsserted(17, tt.activeLow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPin_Missing(t *testing.T) {
	script(t, "", nil)
	_, err := ReadPin(17)
	assert.Error(t, err)
}
