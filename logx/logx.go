// Package logx provides the structured logging used across the notelink
// transport and transaction core.
package logx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// notelink component identifiers.
const (
	ComponentTransaction Component = "transaction"
	ComponentSerial      Component = "serial"
	ComponentI2C         Component = "i2c"
	ComponentJSON        Component = "json"
	ComponentCOBS        Component = "cobs"
	ComponentBinary      Component = "binary"
	ComponentHAL         Component = "hal"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

var (
	// Default is the default logger used by the notelink stack.
	Default *slog.Logger

	// level controls the minimum log level.
	level = new(slog.LevelVar)

	// mu protects logger configuration.
	mu sync.RWMutex

	// sink, when non-nil, additionally receives the message text of every
	// Debug/Info/Warn/Error call, without the component tag or key/value
	// attributes and whether or not the level filter passes the call to
	// Default. This is the realization of the optional "debug-output"
	// platform binding (spec.md §6): a host registers one via SetSink.
	sink func(line string)
)

func init() {
	level.Set(slog.LevelWarn)
	Default = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLevel sets the minimum log level for all notelink logging.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// Level returns the current minimum log level.
func Level() slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// SetLogger replaces the default logger with a custom logger.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Default = logger
}

// SetFormat configures the default logger to use the specified format,
// writing to os.Stderr at the current level.
func SetFormat(format Format) {
	mu.Lock()
	defer mu.Unlock()
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		Default = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	default:
		Default = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
}

// New creates a new text logger writing to the given writer.
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: level}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetSink installs (or, with nil, removes) the platform debug-output hook.
// When set, the message text of every Debug/Info/Warn/Error call is also
// passed to fn, regardless of the log level, matching the
// "debug-output(str)" binding of spec.md §6.
func SetSink(fn func(line string)) {
	mu.Lock()
	defer mu.Unlock()
	sink = fn
}

func emit(lvl slog.Level, component Component, msg string, args ...any) {
	mu.RLock()
	logger, s := Default, sink
	mu.RUnlock()

	all := append([]any{"component", string(component)}, args...)
	logger.Log(context.Background(), lvl, msg, all...)

	if s != nil {
		s(msg)
	}
}

// Debug logs a debug message with the given component.
func Debug(component Component, msg string, args ...any) { emit(slog.LevelDebug, component, msg, args...) }

// Info logs an info message with the given component.
func Info(component Component, msg string, args ...any) { emit(slog.LevelInfo, component, msg, args...) }

// Warn logs a warning message with the given component.
func Warn(component Component, msg string, args ...any) { emit(slog.LevelWarn, component, msg, args...) }

// Error logs an error message with the given component.
func Error(component Component, msg string, args ...any) { emit(slog.LevelError, component, msg, args...) }
