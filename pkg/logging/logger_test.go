package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelWarn {
		t.Errorf("Expected default level to be warn, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name    string
		level   LogLevel
		logFn   func(msg string)
		visible bool
	}{
		{"debug_at_debug", LevelDebug, func(m string) { log.Debug().Msg(m) }, true},
		{"debug_at_info", LevelInfo, func(m string) { log.Debug().Msg(m) }, false},
		{"info_at_info", LevelInfo, func(m string) { log.Info().Msg(m) }, true},
		{"info_at_warn", LevelWarn, func(m string) { log.Info().Msg(m) }, false},
		{"warn_at_warn", LevelWarn, func(m string) { log.Warn().Msg(m) }, true},
		{"error_at_error", LevelError, func(m string) { log.Error().Msg(m) }, true},
		{"error_when_disabled", LevelDisabled, func(m string) { log.Error().Msg(m) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(Config{Level: tt.level, Output: &buf})

			tt.logFn("probe message")

			if got := strings.Contains(buf.String(), "probe message"); got != tt.visible {
				t.Errorf("visible = %v, want %v (output %q)", got, tt.visible, buf.String())
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	Setup(Config{Level: LevelInfo, Pretty: true, Output: &buf})
	log.Info().Str("op", "CreateDatabase").Msg("Created database")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "op=CreateDatabase") {
		t.Errorf("pretty output missing field: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"", LevelWarn, false},
		{"disabled", LevelDisabled, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	Setup(Config{Level: LevelInfo, Output: &buf})

	logger := NewLogger("docdb-client")
	logger.Info().Msg("component test")

	if !strings.Contains(buf.String(), `"component":"docdb-client"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
}
