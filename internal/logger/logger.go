// Package logger provides process-wide logging for the Archivist CLI.
// Info, warnings and errors are always written. Debug messages and section
// headers appear only when verbose mode is enabled via the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	verbose bool
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar   = newSugar(os.Stderr)
)

func newEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.NameKey = zapcore.OmitKey
	return zapcore.NewConsoleEncoder(cfg)
}

func newSugar(w io.Writer) *zap.SugaredLogger {
	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sugar = newSugar(w)
}

// UseCore routes all logging through core, e.g. a zaptest observer.
// SetOutput restores the console encoder.
func UseCore(core zapcore.Core) {
	mu.Lock()
	defer mu.Unlock()
	sugar = zap.New(core).Sugar()
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	current().Debugf(format, args...)
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	if !IsVerbose() {
		return
	}
	current().Debug(fmt.Sprintf("=== %s ===", name))
}

// Info logs an informational message.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	current().Errorf(format, args...)
}
