package utils

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		debug      bool
		debugLevel bool
	}{
		{"debug logs at debug level", true, true},
		{"production starts at info", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger(%v) error: %v", tt.debug, err)
			}
			defer func() { _ = logger.Sync() }()
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugLevel {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugLevel)
			}
			if !logger.Core().Enabled(zapcore.WarnLevel) {
				t.Error("warn should always be enabled")
			}
		})
	}
}

func TestMust(t *testing.T) {
	if l := Must(nil, errors.New("boom")); l == nil {
		t.Fatal("Must returned nil")
	}
	base, _ := NewLogger(false)
	if l := Must(base, nil); l != base {
		t.Error("Must should return the given logger")
	}
	if l := Must(base, errors.New("boom")); l == base {
		t.Error("Must should discard the logger on error")
	}
}
