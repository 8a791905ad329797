package shared

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "value") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestNewRotatingLoggerDisabledFileSink(t *testing.T) {
	// A zero max size must not create or require a log file.
	logger := NewRotatingLogger(LoggingConfig{FilePath: "/nonexistent/dir/app.log", MaxSizeMB: 0})
	if logger == nil {
		t.Fatal("expected a logger")
	}
	logger.Debug("noop")
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "component", "test")

	logger.Info("message")

	if !strings.Contains(buf.String(), "component") {
		t.Errorf("expected component field in output: %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}

	for _, tc := range tests {
		if got := ParseLogLevel(tc.in); got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(time.Time{}); got != "Never" {
		t.Errorf("expected Never for zero time, got %q", got)
	}

	ts := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2026-08-25 14:30:00" {
		t.Errorf("unexpected format: %q", got)
	}
}
