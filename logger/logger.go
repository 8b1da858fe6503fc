// Package logger initializes the zerolog logger shared across promptctl.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New creates the CLI logger. Logs go to stderr so they never mix with
// command output on stdout; verbose switches to pretty console output at
// debug level. The level can also be forced via the LOG_LEVEL environment
// variable (trace, debug, info, warn, error).
func New(verbose bool) zerolog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	if verbose {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning", "":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
