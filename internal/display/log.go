package display

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// LogScreen writes frames to the log; used when no physical screen is
// attached.
type LogScreen struct{}

func (LogScreen) Draw(lines []string) error {
	log.Debug().Str("screen", strings.Join(lines, " | ")).Msg("Display frame")
	return nil
}

type LogMatrix struct{}

func (LogMatrix) ShowFrame(frame int) error {
	log.Debug().Int("frame", frame).Msg("Matrix frame")
	return nil
}
