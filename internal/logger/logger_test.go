package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

// TestNew tests the New function.
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level zapcore.LevelEnabler
	}{
		{
			name:  "with debug level",
			level: zapcore.DebugLevel,
		},
		{
			name:  "with warn level",
			level: zapcore.WarnLevel,
		},
		{
			name:  "with nil level",
			level: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.NotNil(t, New(tt.level))
		})
	}
}

// TestParseLogLevel tests the ParseLogLevel function.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected zapcore.Level
		valid    bool
	}{
		{
			name:     "debug level",
			input:    "debug",
			expected: zapcore.DebugLevel,
			valid:    true,
		},
		{
			name:     "info level",
			input:    "info",
			expected: zapcore.InfoLevel,
			valid:    true,
		},
		{
			name:     "warn level",
			input:    "warn",
			expected: zapcore.WarnLevel,
			valid:    true,
		},
		{
			name:     "error level",
			input:    "error",
			expected: zapcore.ErrorLevel,
			valid:    true,
		},
		{
			name:     "dpanic level",
			input:    "dpanic",
			expected: zapcore.DPanicLevel,
			valid:    true,
		},
		{
			name:     "panic level",
			input:    "panic",
			expected: zapcore.PanicLevel,
			valid:    true,
		},
		{
			name:     "fatal level",
			input:    "fatal",
			expected: zapcore.FatalLevel,
			valid:    true,
		},
		{
			name:     "uppercase error",
			input:    "ERROR",
			expected: zapcore.ErrorLevel,
			valid:    true,
		},
		{
			name:     "mixed case warn",
			input:    "Warn",
			expected: zapcore.WarnLevel,
			valid:    true,
		},
		{
			name:     "surrounding whitespace",
			input:    "  info\t",
			expected: zapcore.InfoLevel,
			valid:    true,
		},
		{
			name:     "unknown level falls back to info",
			input:    "verbose",
			expected: zapcore.InfoLevel,
			valid:    false,
		},
		{
			name:     "empty string falls back to info",
			input:    "",
			expected: zapcore.InfoLevel,
			valid:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			level, valid := ParseLogLevel(tt.input)
			assert.Equal(t, tt.expected, level)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

// TestGlobalLoggerInitialized tests that the package-level logger exists without any setup.
func TestGlobalLoggerInitialized(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, Logger())
	assert.NotNil(t, Level())
}

// TestSetLogger tests the SetLogger function.
func TestSetLogger(t *testing.T) {
	// Don't run in parallel to avoid races on the global logger state.
	originalLogger := Logger()
	defer SetLogger(originalLogger)

	newLogger := New(zapcore.DebugLevel)
	SetLogger(newLogger)

	assert.Equal(t, newLogger, Logger())
}

// TestSetLevel tests the SetLevel function.
func TestSetLevel(t *testing.T) {
	// Don't run in parallel to avoid races on the global logger state.
	originalLevel := Level()
	defer SetLevel(originalLevel)

	SetLevel(zapcore.DebugLevel)
	assert.Equal(t, zapcore.DebugLevel, Level())

	SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, Level())
}

// TestContextLoggingFunctions tests all the context-based logging helpers.
func TestContextLoggingFunctions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	Debug(ctx, "test debug message")
	Debugf(ctx, "test debug message: %s", "formatted")
	DebugKV(ctx, "test debug message", "key", "value")

	Info(ctx, "test info message")
	Infof(ctx, "test info message: %s", "formatted")
	InfoKV(ctx, "test info message", "key", "value")

	Warn(ctx, "test warn message")
	Warnf(ctx, "test warn message: %s", "formatted")
	WarnKV(ctx, "test warn message", "key", "value")

	Error(ctx, "test error message")
	Errorf(ctx, "test error message: %s", "formatted")
	ErrorKV(ctx, "test error message", "key", "value")

	// Fatal and Panic are left out: they would terminate the test process.
}

// TestConcurrentLogging tests that concurrent writes through the global logger do not race.
func TestConcurrentLogging(_ *testing.T) {
	// Don't run in parallel to avoid races on the global logger state.
	ctx := context.Background()

	done := make(chan struct{}, 10)

	for range 10 {
		go func() {
			Info(ctx, "concurrent message")

			done <- struct{}{}
		}()
	}

	for range 10 {
		<-done
	}
}
