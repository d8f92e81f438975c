package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/thatsimonsguy/tank-controller/internal/config"
)

func Init(level zerolog.Level, cfg config.Log) {
	log.Logger = zerolog.New(Writer(cfg)).Level(level).With().Timestamp().Logger()

	if level == zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
}

// Writer returns the rotating log file, teed to stderr when console output
// is enabled.
func Writer(cfg config.Log) io.Writer {
	var writers []io.Writer
	if cfg.File != "" {
		writers = append(writers, &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, 10),
			MaxBackups: valOr(cfg.MaxBackups, 3),
			MaxAge:     valOr(cfg.MaxAgeDays, 7),
		})
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return zerolog.MultiLevelWriter(writers...)
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
