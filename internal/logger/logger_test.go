package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewBuildsLogger(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		log, err := New("debug", env)
		if err != nil {
			t.Fatalf("New(%s): %v", env, err)
		}
		if !log.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("env %s: debug not enabled", env)
		}
	}
}
