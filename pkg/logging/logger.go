// Package logging configures zerolog for the demo programs and the docdb client.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs request flow, cache and throttle details.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs resource creation and batch progress.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries, throttling and cache failures.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed requests only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off; the demos narrate on stdout instead.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON lines.
	Pretty bool

	// Output receives log lines; nil means os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used when nothing is set:
// warnings and errors as JSON on stderr, so demo narration stays readable.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelDisabled:
		return l, nil
	case "warning":
		return LevelWarn, nil
	case "":
		return LevelWarn, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug:    zerolog.DebugLevel,
	LevelInfo:     zerolog.InfoLevel,
	LevelWarn:     zerolog.WarnLevel,
	LevelError:    zerolog.ErrorLevel,
	LevelDisabled: zerolog.Disabled,
}

// parseLevel maps a level to zerolog, falling back to warn for anything
// ParseLevel would reject.
func parseLevel(level LogLevel) zerolog.Level {
	if l, err := ParseLevel(string(level)); err == nil {
		return zerologLevels[l]
	}
	return zerolog.WarnLevel
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - Cache hit/miss and conditional requests
//   - Throttle waits
//   - Page fetches of batch listings
//
// Info: noteworthy events
//   - Created databases and collections
//   - Bulk upload and fixture export progress
//   - Metrics server startup/shutdown
//
// Warn: recoverable conditions
//   - Retried requests (throttled, server, network)
//   - Cache or throttle state unavailable in Redis
//   - docdb responses with status >= 400
//
// Error: failures a demo cannot recover from
//
// Context Fields:
//   - component: docdb-client, ratelimit, demos, tmdb, getmovies
//   - op: docdb operation name (CreateDocument, QueryDocuments, ...)
//   - status: HTTP status code
//   - error_class: client, throttled, server, network
//   - activity_id: x-ms-activity-id of the failed request
//   - link: resource link of a cached read
