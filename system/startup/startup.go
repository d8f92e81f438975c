package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/env"
	"github.com/thatsimonsguy/tank-controller/internal/pinctrl"
)

var (
	relayAsserted = pinctrl.RelayAsserted
	parkRelay     = pinctrl.ParkRelay
)

// CheckRelayParked inspects the relay line before the controller claims it
// and parks it when something left the pump relay asserted. A failed
// inspection is only logged; claiming the line parks it anyway.
func CheckRelayParked() bool {
	pin := *env.Cfg.GPIO.RelayPin
	activeLow := env.Cfg.Pump.RelayActiveLow

	asserted, err := relayAsserted(pin, activeLow)
	if err != nil {
		log.Debug().Err(err).Int("pin", pin).Msg("Could not inspect relay line")
		return true
	}
	if !asserted {
		return true
	}

	log.Warn().Int("pin", pin).Msg("Pump relay found asserted at startup, parking it")
	if err := parkRelay(pin, activeLow); err != nil {
		log.Error().Err(err).Int("pin", pin).Msg("Failed to park relay line")
	}
	return false
}

// BootScript renders the shell script that parks every output line at
// boot: relay released, LEDs and buzzer off.
func BootScript(cfg *config.Config) string {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Tank controller GPIO configuration at boot", "")

	write := func(label string, pin *int, high bool) {
		if pin == nil {
			return
		}
		drive := "dl"
		if high {
			drive = "dh"
		}
		lines = append(lines, fmt.Sprintf("# %s", label))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", *pin, drive))
		lines = append(lines, "")
	}

	// an active-low relay is released by driving the line high
	write("pump_relay", cfg.GPIO.RelayPin, cfg.Pump.RelayActiveLow)
	write("green_led", cfg.GPIO.GreenLED, false)
	write("yellow_led", cfg.GPIO.YellowLED, false)
	write("buzzer", cfg.GPIO.BuzzerPin, false)
	write("ultrasonic_trig", cfg.GPIO.UltrasonicTrig, false)

	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript() error {
	return os.WriteFile(env.Cfg.Service.BootScriptPath, []byte(BootScript(env.Cfg)), 0755)
}

func InstallStartupService() error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Park tank controller GPIO lines at boot
After=local-fs.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, env.Cfg.Service.BootScriptPath)

	return os.WriteFile(env.Cfg.Service.BootUnitPath, []byte(unitContents), 0644)
}

func RunStartupScript() error {
	cmd := exec.Command("/bin/bash", env.Cfg.Service.BootScriptPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ControllerUnit renders the main service unit, ordered after the GPIO
// boot unit.
func ControllerUnit(cfg *config.Config) string {
	gpioUnitName := filepath.Base(cfg.Service.BootUnitPath)

	execCmd := cfg.Service.ExecPath
	if cfg.ConfigFile != "" {
		execCmd += " --config-file " + cfg.ConfigFile
	}

	return fmt.Sprintf(`[Unit]
Description=Water tank pump controller
After=%s network-online.target
Requires=%s
Wants=network-online.target

[Service]
Type=simple
User=%s
WorkingDirectory=%s
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, cfg.Service.User, cfg.Service.WorkDir, execCmd)
}

func InstallControllerService() error {
	return os.WriteFile(env.Cfg.Service.UnitPath, []byte(ControllerUnit(env.Cfg)), 0644)
}

// Install writes the boot script and both units.
func Install() error {
	if err := WriteStartupScript(); err != nil {
		return fmt.Errorf("write boot script: %w", err)
	}
	if err := InstallStartupService(); err != nil {
		return fmt.Errorf("write boot unit: %w", err)
	}
	if err := InstallControllerService(); err != nil {
		return fmt.Errorf("write controller unit: %w", err)
	}
	return nil
}
