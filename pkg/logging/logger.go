// Package logging configures the zerolog logger shared by the proxy, the
// aggregator and the CLI.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvPretty = "LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies LOG_LEVEL and
// LOG_PRETTY when they are set. Unparseable LOG_PRETTY values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if level := os.Getenv(EnvLevel); level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if pretty := os.Getenv(EnvPretty); pretty != "" {
		if v, err := strconv.ParseBool(pretty); err == nil {
			cfg.Pretty = v
		}
	}
	return cfg
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown values map to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: page fetch and merge detail, cache hit/miss, rate limit headers.
//
// Info: server startup, first page loaded, bulk load finished, upstream
// state changes that are still healthy.
//
// Warn: bulk load stopped early, rate limit throttling, cache errors
// (the request still goes upstream), retries.
//
// Error: proxy failures reaching the upstream, rate limit blocks,
// configuration errors.
//
// Context Fields:
//   - component: emitting package (collection, discogs-client, proxy, ...)
//   - session_id: aggregator session id
//   - username, folder_id, page, per_page: collection request coordinates
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - remaining: Discogs rate limit requests remaining
//   - duration: request or bulk load duration
