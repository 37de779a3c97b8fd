// Package logging wraps zerolog with the field helpers this module's
// components use: node/share/volume/correlation identifiers instead of a
// generic "component" string.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger. Init must be called once at
// startup; until then Logger is the zero value, which writes nowhere.
var Logger zerolog.Logger

// Level names a logging verbosity, independent of zerolog's own type so
// config files don't need to import zerolog.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global Logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the global Logger from cfg. Safe to call more than once
// (e.g. to change level after loading config).
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithNodeUID returns a child logger carrying the given node UID.
func WithNodeUID(uid string) zerolog.Logger {
	return Logger.With().Str("node_uid", uid).Logger()
}

// WithShareID returns a child logger carrying the given share id.
func WithShareID(shareID string) zerolog.Logger {
	return Logger.With().Str("share_id", shareID).Logger()
}

// WithVolumeID returns a child logger carrying the given volume id.
func WithVolumeID(volumeID string) zerolog.Logger {
	return Logger.With().Str("volume_id", volumeID).Logger()
}

// WithCorrelationID returns a child logger carrying a request-tracing id,
// typically a freshly generated uuid attached to one API-service call.
func WithCorrelationID(correlationID string) zerolog.Logger {
	return Logger.With().Str("correlation_id", correlationID).Logger()
}
