package pkg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Component identifies a subsystem for log filtering.
type Component string

// Sensor hub stack components.
const (
	ComponentHub      Component = "hub"
	ComponentCommand  Component = "command"
	ComponentDispatch Component = "dispatch"
	ComponentLoopBuf  Component = "lbuf"
	ComponentCirc     Component = "circ"
	ComponentHAL      Component = "hal"
	ComponentPublish  Component = "publish"
	ComponentCLI      Component = "cli"
)

// LogFormat selects the handler used by SetLogFormat.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Text format (default)
	LogFormatJSON                  // JSON format
)

var (
	// logLevel is shared by every handler created in this package.
	logLevel = new(slog.LevelVar)

	logger atomic.Pointer[slog.Logger]
)

func init() {
	logLevel.Set(slog.LevelWarn)
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// SetLogLevel sets the minimum level for loggers built by this package.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() slog.Level {
	return logLevel.Level()
}

// Logger returns the logger currently used by the stack.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the stack logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// SetLogFormat installs a stderr logger of the given format that honors
// the package log level.
func SetLogFormat(format LogFormat) {
	opts := &slog.HandlerOptions{Level: logLevel}
	switch format {
	case LogFormatJSON:
		logger.Store(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		logger.Store(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
}

// NewLogger creates a text logger writing to w.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a JSON logger writing to w.
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func logAt(level slog.Level, component Component, msg string, args []any) {
	l := logger.Load()
	l.Log(context.Background(), level, msg, append([]any{"component", string(component)}, args...)...)
}

// LogDebug logs a debug message tagged with component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(slog.LevelDebug, component, msg, args)
}

// LogInfo logs an info message tagged with component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(slog.LevelInfo, component, msg, args)
}

// LogWarn logs a warning tagged with component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(slog.LevelWarn, component, msg, args)
}

// LogError logs an error tagged with component.
func LogError(component Component, msg string, args ...any) {
	logAt(slog.LevelError, component, msg, args)
}
