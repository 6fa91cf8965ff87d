package logging

import (
	"log/slog"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	cases := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		logger := New(tc.level)
		if logger == nil {
			t.Fatalf("New(%q) returned nil", tc.level)
		}
		if !logger.Enabled(nil, tc.want) {
			t.Errorf("New(%q): expected level %v to be enabled", tc.level, tc.want)
		}
	}
}

func TestDefaultIsInfo(t *testing.T) {
	logger := Default()
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Fatal("default logger should not enable debug")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Fatal("default logger should enable info")
	}
}

func TestWithReturnsWrappedLogger(t *testing.T) {
	logger := Default().With("component", "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("With returned nil logger")
	}
}
