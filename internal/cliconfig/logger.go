package cliconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/groupcast/internal/domain"
)

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, level)
	}
	return l, nil
}

// Logger returns the console logger used by the CLIs.
func Logger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// LoggerAt returns Logger filtered at level. Unknown levels fall back to info.
func LoggerAt(level string) zerolog.Logger {
	l, err := ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	return Logger().Level(l)
}
