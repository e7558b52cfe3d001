package logger

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// defaultLevel is the log level used until SetLevel is called.
const defaultLevel = zapcore.InfoLevel

//nolint:gochecknoglobals // Global logger state is intentional: it is shared across the whole process.
var (
	globalMutex  sync.RWMutex
	globalLevel  = zap.NewAtomicLevelAt(defaultLevel)
	globalLogger = New(globalLevel)
)

// New creates a new zap logger writing human-readable output to stderr.
// If level is nil, the default level is used.
func New(level zapcore.LevelEnabler) *zap.Logger {
	if level == nil {
		level = globalLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	globalMutex.RLock()
	defer globalMutex.RUnlock()

	return globalLogger
}

// SetLogger replaces the global logger.
func SetLogger(l *zap.Logger) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	globalLogger = l
}

// Level returns the current global log level.
func Level() zapcore.Level {
	return globalLevel.Level()
}

// SetLevel changes the global log level.
func SetLevel(level zapcore.Level) {
	globalLevel.SetLevel(level)
}

// IsDebugLevel reports whether debug logging is enabled.
func IsDebugLevel() bool {
	return globalLevel.Enabled(zapcore.DebugLevel)
}

// ParseLogLevel parses a textual log level ("debug", "info", "warn", ...).
// The second return value reports whether the input was recognized;
// on failure the info level is returned.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return level, true
}

// fromContext returns the logger associated with the context.
// The context parameter is accepted on every logging helper so call sites
// stay uniform; a future tracing integration can attach request-scoped
// loggers here without touching callers.
func fromContext(_ context.Context) *zap.Logger {
	return Logger()
}

// Debug logs a message at debug level.
func Debug(ctx context.Context, msg string) {
	fromContext(ctx).Debug(msg)
}

// Debugf logs a formatted message at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	fromContext(ctx).Sugar().Debugf(format, args...)
}

// DebugKV logs a message at debug level with key-value pairs.
func DebugKV(ctx context.Context, msg string, kv ...any) {
	fromContext(ctx).Sugar().Debugw(msg, kv...)
}

// Info logs a message at info level.
func Info(ctx context.Context, msg string) {
	fromContext(ctx).Info(msg)
}

// Infof logs a formatted message at info level.
func Infof(ctx context.Context, format string, args ...any) {
	fromContext(ctx).Sugar().Infof(format, args...)
}

// InfoKV logs a message at info level with key-value pairs.
func InfoKV(ctx context.Context, msg string, kv ...any) {
	fromContext(ctx).Sugar().Infow(msg, kv...)
}

// Warn logs a message at warn level.
func Warn(ctx context.Context, msg string) {
	fromContext(ctx).Warn(msg)
}

// Warnf logs a formatted message at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	fromContext(ctx).Sugar().Warnf(format, args...)
}

// WarnKV logs a message at warn level with key-value pairs.
func WarnKV(ctx context.Context, msg string, kv ...any) {
	fromContext(ctx).Sugar().Warnw(msg, kv...)
}

// Error logs a message at error level.
func Error(ctx context.Context, msg string) {
	fromContext(ctx).Error(msg)
}

// Errorf logs a formatted message at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	fromContext(ctx).Sugar().Errorf(format, args...)
}

// ErrorKV logs a message at error level with key-value pairs.
func ErrorKV(ctx context.Context, msg string, kv ...any) {
	fromContext(ctx).Sugar().Errorw(msg, kv...)
}

// Fatalf logs a formatted message at fatal level and exits the process.
func Fatalf(ctx context.Context, format string, args ...any) {
	fromContext(ctx).Sugar().Fatalf(format, args...)
}
