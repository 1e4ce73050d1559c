// Package sysutil holds small process-level helpers used by the server
// entrypoint.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel configures the global zerolog level from the LOG_LEVEL config
// value. Supported values (case-insensitive): debug, info, warn, error,
// fatal, panic. Empty or unknown values fall back to info so a typo in the
// environment never silences the logs.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
