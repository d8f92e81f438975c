package startup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/thatsimonsguy/tank-controller/internal/env"
	"github.com/thatsimonsguy/tank-controller/internal/pinctrl"
)

func intPtr(i int) *int { return &i }

func testConfig(dir string) *config.Config {
	cfg := &config.Config{ConfigFile: "/etc/tank/config.json"}
	cfg.GPIO.RelayPin = intPtr(17)
	cfg.GPIO.GreenLED = intPtr(22)
	cfg.GPIO.BuzzerPin = intPtr(27)
	cfg.Pump.RelayActiveLow = true
	cfg.Service = config.Service{
		UnitPath:       filepath.Join(dir, "tank-controller.service"),
		BootScriptPath: filepath.Join(dir, "tank-gpio-init.sh"),
		BootUnitPath:   filepath.Join(dir, "tank-gpio-init.service"),
		User:           "pi",
		WorkDir:        "/opt/tank-controller",
		ExecPath:       "/opt/tank-controller/tank-controller",
	}
	return cfg
}

func TestBootScript_ParksLines(t *testing.T) {
	script := BootScript(testConfig(t.TempDir()))

	assert.Contains(t, script, "pinctrl set 17 op pn dh")
	assert.Contains(t, script, "pinctrl set 22 op pn dl")
	assert.Contains(t, script, "pinctrl set 27 op pn dl")
	assert.NotContains(t, script, "yellow_led")
}

func TestBootScript_ActiveHighRelay(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Pump.RelayActiveLow = false
	assert.Contains(t, BootScript(cfg), "pinctrl set 17 op pn dl")
}

func TestInstall_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	env.Cfg = testConfig(dir)
	defer func() { env.Cfg = nil }()

	require.NoError(t, Install())

	info, err := os.Stat(env.Cfg.Service.BootScriptPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "boot script must be executable")

	unit, err := os.ReadFile(env.Cfg.Service.UnitPath)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "Requires=tank-gpio-init.service")
	assert.Contains(t, string(unit), "ExecStart=/opt/tank-controller/tank-controller --config-file /etc/tank/config.json")

	boot, err := os.ReadFile(env.Cfg.Service.BootUnitPath)
	require.NoError(t, err)
	assert.Contains(t, string(boot), "ExecStart="+env.Cfg.Service.BootScriptPath)
}

func TestCheckRelayParked(t *testing.T) {
	env.Cfg = testConfig(t.TempDir())
	defer func() {
		env.Cfg = nil
		relayAsserted = pinctrl.RelayAsserted
		parkRelay = pinctrl.ParkRelay
	}()

	var parked []int
	parkRelay = func(pin int, activeLow bool) error {
		parked = append(parked, pin)
		return nil
	}

	relayAsserted = func(pin int, activeLow bool) (bool, error) { return false, nil }
	assert.True(t, CheckRelayParked())
	assert.Empty(t, parked)

	relayAsserted = func(pin int, activeLow bool) (bool, error) { return false, errors.New("no pinctrl") }
	assert.True(t, CheckRelayParked())
	assert.Empty(t, parked)

	relayAsserted = func(pin int, activeLow bool) (bool, error) {
		assert.True(t, activeLow)
		return true, nil
	}
	assert.False(t, CheckRelayParked())
	assert.Equal(t, []int{17}, parked)
}
