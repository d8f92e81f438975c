package shutdown

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/pinctrl"
)

func reset(t *testing.T) *int {
	t.Helper()
	code := -1
	ExitFunc = func(c int) { code = c }
	once = sync.Once{}
	relay = nil
	fallbackPin = -1
	t.Cleanup(func() {
		once = sync.Once{}
		relay = nil
		fallbackPin = -1
		parkPin = pinctrl.ParkRelay
	})
	return &code
}

func TestShutdown_ReleasesRelayAndExitsZero(t *testing.T) {
	code := reset(t)
	r := gpio.NewFakeRelay()
	_ = r.Set(true)
	SetRelay(r)

	Shutdown()

	assert.Equal(t, 0, *code)
	assert.False(t, r.Asserted())
	assert.True(t, r.Closed)
}

func TestShutdownWithError_ExitsOne(t *testing.T) {
	code := reset(t)
	SetRelay(gpio.NewFakeRelay())

	ShutdownWithError(errors.New("boom"), "fatal")

	assert.Equal(t, 1, *code)
}

func TestRelease_NoRelayRegistered(t *testing.T) {
	reset(t)
	assert.NotPanics(t, Release)
}

func TestRelease_ParksFallbackPinWithoutRelay(t *testing.T) {
	reset(t)
	var parked []int
	parkPin = func(pin int, activeLow bool) error {
		assert.True(t, activeLow)
		parked = append(parked, pin)
		return nil
	}
	SetFallbackPin(17, true)

	Release()
	Release()

	assert.Equal(t, []int{17}, parked)
}

func TestRelease_RelayWinsOverFallback(t *testing.T) {
	reset(t)
	parkPin = func(pin int, activeLow bool) error {
		t.Fatalf("fallback used while relay registered")
		return nil
	}
	SetFallbackPin(17, true)
	SetRelay(gpio.NewFakeRelay())

	Release()
}
