package logging

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
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerConfig(t *testing.T) {
	cfg := NewLoggerConfig(zapcore.DebugLevel)
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Errorf("OutputPaths: got %v, want [stderr]", cfg.OutputPaths)
	}
	if !cfg.Level.Enabled(zapcore.DebugLevel) {
		t.Error("debug level should be enabled")
	}
	if !cfg.DisableStacktrace {
		t.Error("stacktraces should be disabled")
	}
}

func TestNew(t *testing.T) {
	logger, err := New("vault-geometry", "warn")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Desugar().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}
