// Package logging configures the global zerolog logger for imageprep.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// IMAGEPREP_LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// The CLI gets a human-readable console writer; pass console=false for JSON output
// (Lambda, where CloudWatch ingests structured lines).
func Init(console bool) {
	switch os.Getenv("IMAGEPREP_LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
