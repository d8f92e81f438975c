package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/pinctrl"
)

var (
	mu    sync.Mutex
	relay gpio.Relay
	once  sync.Once

	fallbackPin       = -1
	fallbackActiveLow bool
)

// parkPin is pinctrl.ParkRelay outside tests.
var parkPin = pinctrl.ParkRelay

// ExitFunc is os.Exit outside tests.
var ExitFunc = os.Exit

// SetRelay registers the pump relay so shutdown can leave it released.
func SetRelay(r gpio.Relay) {
	mu.Lock()
	defer mu.Unlock()
	relay = r
}

// SetFallbackPin names the relay line to park through pinctrl when no
// relay handle was registered.
func SetFallbackPin(pin int, activeLow bool) {
	mu.Lock()
	defer mu.Unlock()
	fallbackPin = pin
	fallbackActiveLow = activeLow
}

// Release drops the relay line and closes it. Safe to call more than once.
func Release() {
	once.Do(func() {
		mu.Lock()
		r, pin, activeLow := relay, fallbackPin, fallbackActiveLow
		mu.Unlock()
		if r == nil {
			if pin < 0 {
				return
			}
			if err := parkPin(pin, activeLow); err != nil {
				log.Warn().Err(err).Int("pin", pin).Msg("Failed to park pump relay line")
				return
			}
			log.Info().Int("pin", pin).Msg("Pump relay line parked")
			return
		}
		if err := r.Set(false); err != nil {
			log.Warn().Err(err).Msg("Failed to release pump relay")
		}
		if err := r.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close pump relay line")
		}
		log.Info().Msg("Pump relay released")
	})
}

func Shutdown() {
	Release()
	ExitFunc(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Release()
	ExitFunc(1)
}
