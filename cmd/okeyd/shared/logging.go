package shared

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger configures zerolog with pretty console output.
func SetupLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// SetupStructuredLogger configures zerolog for JSON output, for log
// shipping.
func SetupStructuredLogger(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
}
