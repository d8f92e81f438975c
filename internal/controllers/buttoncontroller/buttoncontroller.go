package buttoncontroller

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/gpio"
)

type ResetRequester interface {
	RequestReset()
}

// Run turns button A presses into limit reset requests. Button B and the
// joystick switch are wired but have no action. Returns when ctx ends or
// the event channel closes.
func Run(ctx context.Context, buttons gpio.Buttons, st ResetRequester) {
	events := buttons.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			handle(evt, st)
		}
	}
}

func Start(ctx context.Context, buttons gpio.Buttons, st ResetRequester) {
	go func() {
		log.Info().Msg("Starting button controller")
		Run(ctx, buttons, st)
	}()
}

func handle(evt gpio.ButtonEvent, st ResetRequester) {
	switch evt.Button {
	case gpio.ButtonA:
		st.RequestReset()
		log.Info().Str("button", evt.Button.String()).Msg("Limit reset requested")
	default:
		log.Debug().Str("button", evt.Button.String()).Msg("Button pressed, no action bound")
	}
}
