package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{in: "debug", want: LevelDebug},
		{in: " DEBUG ", want: LevelDebug},
		{in: "warn", want: LevelWarn},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "info", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "verbose", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "debug", LevelDebug.String())
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelWarn)

	logger.Info("routine")
	logger.Warn("rate limited", "endpoint", "pulls")

	out := buf.String()
	assert.NotContains(t, out, "routine")
	assert.Contains(t, out, "rate limited")
	assert.Contains(t, out, "endpoint=pulls")
	assert.NotContains(t, out, "\x1b[", "buffers get uncolored output")
}
