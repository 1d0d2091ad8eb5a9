// Package logging configures the zerolog logger shared by the harvester packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity.
type LogLevel string

// Supported levels, lowest first.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	// Harvest results go to files, so stdout stays free.
	Output io.Writer
}

// DefaultConfig returns JSON logs at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// ParseLevel validates a level name from configuration. An empty name
// selects info; "warning" is accepted for warn.
func ParseLevel(name string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(name)))
	switch level {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[level]; !ok {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
	return level, nil
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[parsed]
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithHarvest returns a logger carrying the identifying fields of one harvest run.
func WithHarvest(logger zerolog.Logger, query string, requested int) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Int("requested", requested).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, layer)
//   - Every outgoing request URL (api_key redacted)
//
// Info: Normal operation events
//   - Probed result count
//   - Each page written (page, rows, start, documents)
//   - Harvest summary and output path
//
// Warn: Conditions that don't stop the crawl
//   - Retry attempts with failure class
//   - Cache errors (fallback to direct request)
//   - Output discarded after a failed crawl
//
// Error: Conditions that end the crawl
//   - Fetch exhausted all attempts
//   - Unparseable page or unknown result count
//   - Configuration errors
//
// Context Fields:
//   - component: package emitting the event
//   - url: request URL with api_key redacted
//   - attempt: one-based attempt number
//   - failure_class: dns, timeout, io, http_status, circuit_open, cancelled
//   - status: HTTP status code
//   - page, rows, start: pagination position
//   - num_found: probed result count
//   - duration: elapsed time
