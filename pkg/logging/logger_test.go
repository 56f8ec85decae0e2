package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		emit     func(zerolog.Logger)
		wantMsg  bool
		wantJSON bool
	}{
		{
			name:     "json at info",
			config:   Config{Level: LevelInfo},
			emit:     func(l zerolog.Logger) { l.Info().Str("session_id", "abc").Msg("first page loaded") },
			wantMsg:  true,
			wantJSON: true,
		},
		{
			name:     "debug passes at debug",
			config:   Config{Level: LevelDebug},
			emit:     func(l zerolog.Logger) { l.Debug().Int("page", 2).Msg("first page loaded") },
			wantMsg:  true,
			wantJSON: true,
		},
		{
			name:    "info filtered at error",
			config:  Config{Level: LevelError},
			emit:    func(l zerolog.Logger) { l.Info().Msg("first page loaded") },
			wantMsg: false,
		},
		{
			name:    "off silences errors",
			config:  Config{Level: "off"},
			emit:    func(l zerolog.Logger) { l.Error().Msg("first page loaded") },
			wantMsg: false,
		},
		{
			name:    "pretty console",
			config:  Config{Level: LevelInfo, Pretty: true},
			emit:    func(l zerolog.Logger) { l.Warn().Int("page", 3).Msg("first page loaded") },
			wantMsg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			tt.emit(Setup(tt.config))

			output := buf.String()
			if got := strings.Contains(output, "first page loaded"); got != tt.wantMsg {
				t.Fatalf("message written = %v, want %v (output %q)", got, tt.wantMsg, output)
			}
			if !tt.wantMsg {
				return
			}
			if got := json.Valid(bytes.TrimSpace(buf.Bytes())); got != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v (output %q)", got, tt.wantJSON, output)
			}
		})
	}
}

func TestSetup_PrettyKeepsFields(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("username", "jschow").Int("page", 4).Msg("Merged collection page")

	output := buf.String()
	for _, want := range []string{"Merged collection page", "username=", "jschow", "page=", "4"} {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q: %q", want, output)
		}
	}
	if strings.HasPrefix(output, "{") {
		t.Errorf("pretty output should not be JSON: %q", output)
	}
}

func TestSetup_ReplacesGlobalLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	log.Info().Msg("via global")

	if !strings.Contains(buf.String(), "via global") {
		t.Errorf("global logger should write to the configured output, got %q", buf.String())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "DEBUG")
	t.Setenv(EnvPretty, "true")

	cfg := ConfigFromEnv()
	if cfg.Level != LevelDebug {
		t.Errorf("Level = %q, want %q", cfg.Level, LevelDebug)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true")
	}

	t.Setenv(EnvPretty, "not-a-bool")
	if ConfigFromEnv().Pretty {
		t.Error("invalid LOG_PRETTY should leave Pretty false")
	}
}

func TestSetup_NilOutput(t *testing.T) {
	logger := Setup(Config{Level: LevelInfo})
	logger.Info().Msg("goes to stderr")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"Warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("collection")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "collection") {
		t.Errorf("Expected output to contain 'collection', got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("test")

	// These should NOT appear (below warn level)
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	// These SHOULD appear (warn level and above)
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}
