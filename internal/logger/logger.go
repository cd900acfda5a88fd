// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvLevel names the environment variable holding the log level.
const EnvLevel = "TARGET_MCP_LOG_LEVEL"

// New returns a timestamped logger writing JSON lines to w at level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps debug, info, warn and error (any case) to a zerolog level.
// An empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// FromEnv builds the stderr logger at the level named by TARGET_MCP_LOG_LEVEL.
// stdout carries the MCP protocol and is never written to.
//
// An unknown level falls back to info and is reported through the returned
// logger itself.
func FromEnv() zerolog.Logger {
	level, err := ParseLevel(os.Getenv(EnvLevel))
	log := New(os.Stderr, level)
	if err != nil {
		log.Warn().Err(err).Str("variable", EnvLevel).Msg("using info level")
	}
	return log
}
