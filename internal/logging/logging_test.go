package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestConfigLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbose bool
		want    zapcore.Level
	}{
		{false, zapcore.InfoLevel},
		{true, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		cfg := Config(tt.verbose)
		if got := cfg.Level.Level(); got != tt.want {
			t.Errorf("Config(%v).Level = %v, want %v", tt.verbose, got, tt.want)
		}
		if cfg.Encoding != "console" {
			t.Errorf("Config(%v).Encoding = %q, want console", tt.verbose, cfg.Encoding)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	l, err := New(true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("verbose logger does not enable debug")
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) = nil")
	}
	l, _ := New(false)
	if OrNop(l) != l {
		t.Fatal("OrNop returned a different logger")
	}
}
