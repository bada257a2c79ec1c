// Package logger holds the process-wide zap logger. Until Init or Replace runs it
// discards everything, so library code may log unconditionally.
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the encoder used by Init.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// ParseLevel reads a zap level name. Empty or unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Init builds a logger writing to stderr and installs it. Console output uses zap's
// development encoder; anything else is JSON.
func Init(level string, format Format) error {
	var cfg zap.Config
	switch Format(strings.ToLower(string(format))) {
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(built)
	return nil
}

// Replace installs l (nil means a no-op logger) and returns a func that puts the
// previous logger back.
func Replace(l *zap.Logger) func() {
	if l == nil {
		l = zap.NewNop()
	}
	prev := current.Swap(l)
	return func() { current.Store(prev) }
}

// Logger returns the installed logger.
func Logger() *zap.Logger {
	return current.Load()
}

// WithModule tags the installed logger with a module field.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Info logs through the installed logger.
func Info(msg string, fields ...zap.Field) {
	Logger().Info(msg, fields...)
}

// Sync flushes the installed logger.
func Sync() error {
	return Logger().Sync()
}
