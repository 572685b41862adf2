package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/onehud/registrar/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "console", ""} {
		t.Run(format, func(t *testing.T) {
			logger := New(config.LoggingConfig{
				Level:  "info",
				Format: format,
				Output: "stderr",
			}, "1.0.0")

			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug level", input: "debug", expected: slog.LevelDebug},
		{name: "info level", input: "info", expected: slog.LevelInfo},
		{name: "warn level", input: "warn", expected: slog.LevelWarn},
		{name: "warning level", input: "warning", expected: slog.LevelWarn},
		{name: "error level", input: "error", expected: slog.LevelError},
		{name: "unknown defaults to info", input: "unknown", expected: slog.LevelInfo},
		{name: "empty defaults to info", input: "", expected: slog.LevelInfo},
		{name: "case insensitive", input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewHandler_JSONCarriesFields(t *testing.T) {
	var buf bytes.Buffer

	handler := newHandler(&buf, "json", slog.LevelInfo, false).WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", "test"),
	})

	logger := &Logger{Logger: slog.New(handler)}
	logger.Info("port opened", "port", "/dev/ttyUSB0")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if entry["service"] != ServiceName {
		t.Errorf("service = %v, want %s", entry["service"], ServiceName)
	}
	if entry["msg"] != "port opened" {
		t.Errorf("msg = %v, want 'port opened'", entry["msg"])
	}
	if entry["port"] != "/dev/ttyUSB0" {
		t.Errorf("port = %v, want /dev/ttyUSB0", entry["port"])
	}
}

func TestNewHandler_ConsoleNoColour(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newHandler(&buf, "console", slog.LevelDebug, false))
	logger.Debug("reading mac", "chip", "ESP32-D0WD")

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI escapes without a terminal, got %q", out)
	}
	if !strings.Contains(out, "reading mac") || !strings.Contains(out, "chip=ESP32-D0WD") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestNewHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(newHandler(&buf, "text", slog.LevelWarn, false))
	logger.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	logger := Default()
	child := logger.With("component", "esptool")

	if child == nil || child == logger {
		t.Error("expected a distinct child logger")
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing to see")
}
