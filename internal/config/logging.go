package config

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
)

// LogFormat selects the log handler.
type LogFormat int

const (
	// LogJSON writes one JSON object per entry, for CloudWatch.
	LogJSON LogFormat = iota
	// LogCLI writes colored, human-readable lines.
	LogCLI
)

// SetupLogging installs the apex/log handler for format on w and applies
// LOG_LEVEL (default "info"). An unknown level falls back to info.
func SetupLogging(format LogFormat, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	switch format {
	case LogCLI:
		log.SetHandler(cli.New(w))
	default:
		log.SetHandler(jsonhandler.New(w))
	}

	level, err := log.ParseLevel(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
