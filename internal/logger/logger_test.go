package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)

	// With returns a child logger carrying the extra fields.
	child := log.With(String("service", "link-importer"))
	assert.NotNil(t, child)
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"nonsense", zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, parseLevel(tc.level), "level %q", tc.level)
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	require.NotNil(t, log)

	// Must be safe to use everywhere a real logger is.
	log.Info("ignored", Int("n", 1))
	log.Error("ignored", Error(nil))
	assert.NoError(t, log.Sync())
}
