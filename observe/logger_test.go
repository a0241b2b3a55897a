package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func parseLogLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return entry
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)

	l.Debug(context.Background(), "debug msg")
	l.Info(context.Background(), "info msg")
	l.Warn(context.Background(), "warn msg")
	l.Error(context.Background(), "error msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}

	first := parseLogLine(t, lines[0])
	if first["level"] != "warn" || first["msg"] != "warn msg" {
		t.Errorf("first line = %v", first)
	}
}

func TestLogger_WithRequest(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	rl := l.WithRequest(RequestMeta{ID: "req-1", Model: "m-1", Endpoint: "anthropic"})
	rl.Info(context.Background(), "attempt started")

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	if entry["request.id"] != "req-1" {
		t.Errorf("request.id = %v, want req-1", entry["request.id"])
	}
	if entry["request.model"] != "m-1" {
		t.Errorf("request.model = %v, want m-1", entry["request.model"])
	}
	if entry["request.endpoint"] != "anthropic" {
		t.Errorf("request.endpoint = %v, want anthropic", entry["request.endpoint"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Info(context.Background(), "auth configured",
		Field{Key: "api_key", Value: "sk-secret"},
		Field{Key: "endpoint", Value: "https://api.example.com"},
	)

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	if entry["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %v, want [REDACTED]", entry["api_key"])
	}
	if entry["endpoint"] != "https://api.example.com" {
		t.Errorf("endpoint = %v", entry["endpoint"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	// Must not panic and WithRequest must return a usable logger.
	l.WithRequest(RequestMeta{ID: "r"}).Info(context.Background(), "ignored")
}
