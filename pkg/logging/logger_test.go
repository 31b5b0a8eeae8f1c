package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		verbose         bool
		configured, env string
		expected        zerolog.Level
	}{
		{false, "", "", zerolog.InfoLevel},
		{true, "", "", zerolog.DebugLevel},
		{true, "warn", "", zerolog.WarnLevel},
		{false, "warn", "error", zerolog.ErrorLevel},
		{false, "", "nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := resolveLevel(tt.verbose, tt.configured, tt.env); got != tt.expected {
			t.Errorf("resolveLevel(%v, %q, %q): expected %v, got %v", tt.verbose, tt.configured, tt.env, tt.expected, got)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "linkrun", zerolog.InfoLevel)
	logger.Debug().Msg("hidden")
	logger.Info().Str("fov", "Point1").Msg("linked")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug message to be filtered")
	}
	if !strings.Contains(out, "linked") || !strings.Contains(out, "linkrun") || !strings.Contains(out, "Point1") {
		t.Errorf("Unexpected log output: %q", out)
	}
}
