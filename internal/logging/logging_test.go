package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(LevelDebug < LevelInfo && LevelInfo < LevelWarn && LevelWarn < LevelError) {
		t.Error("levels must be ordered Debug < Info < Warn < Error")
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Debug("not shown")
	log.Info("not shown")
	log.Warn("warning message")
	log.Error("error message")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "warning message") {
		t.Errorf("output missing warn message: %q", out)
	}
	if !strings.Contains(out, "error message") {
		t.Errorf("output missing error message: %q", out)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf, Prefix: ""})

	log.WithPlugin("marker-logger").Info("loaded")

	out := buf.String()
	if !strings.Contains(out, "plugin=marker-logger") {
		t.Errorf("output missing plugin field: %q", out)
	}
}

func TestLogClampsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf})

	log.Log(Level(99), "clamped high")
	log.Log(Level(-3), "clamped low")

	out := buf.String()
	if !strings.Contains(out, "[ERROR] ") || !strings.Contains(out, "clamped high") {
		t.Errorf("high level not clamped to ERROR: %q", out)
	}
	if !strings.Contains(out, "[DEBUG] ") || !strings.Contains(out, "clamped low") {
		t.Errorf("low level not clamped to DEBUG: %q", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	log := Nop()
	// Must not panic and must not write anywhere.
	log.Error("ignored")
}
