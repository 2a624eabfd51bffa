package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitReplacesDefault(t *testing.T) {
	var first, second bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &first, Service: "one"})
	Info("hello %d", 1)
	Init(Config{Level: LevelWarn, Output: &second, Service: "two"})
	Info("dropped")
	Warn("kept")

	if !strings.Contains(first.String(), `"service":"one"`) || !strings.Contains(first.String(), "hello 1") {
		t.Errorf("first output = %q", first.String())
	}
	if strings.Contains(second.String(), "dropped") || !strings.Contains(second.String(), "kept") {
		t.Errorf("second output = %q", second.String())
	}
}
