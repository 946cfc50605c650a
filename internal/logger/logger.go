package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger and installs it as the zerolog global.
// Dev mode switches to a human-readable console writer at debug level.
func Setup(dev bool) zerolog.Logger {
	return setup(os.Stderr, dev)
}

func setup(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger
}
