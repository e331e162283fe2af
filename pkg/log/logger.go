package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger defines the structured logging interface used across the library.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger carrying the given fields on every entry.
	With(fields ...Field) Logger

	// WithComponent tags logs with a component name.
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Option configures a BaseLogger.
type Option func(*BaseLogger)

// BaseLogger implements Logger on top of log/slog.
type BaseLogger struct {
	level  *atomic.Int64
	out    io.Writer
	format string
	slog   *slog.Logger
}

// New creates a logger with the given options. The default writes text to
// stderr at InfoLevel.
func New(options ...Option) *BaseLogger {
	l := &BaseLogger{level: &atomic.Int64{}, out: os.Stderr, format: "text"}
	l.level.Store(int64(InfoLevel))
	for _, option := range options {
		option(l)
	}

	leveler := slog.LevelVar{}
	leveler.Set(slog.LevelDebug) // gating happens in log(), not the handler
	opts := &slog.HandlerOptions{Level: &leveler}
	switch l.format {
	case "json":
		l.slog = slog.New(slog.NewJSONHandler(l.out, opts))
	default:
		l.slog = slog.New(slog.NewTextHandler(l.out, opts))
	}
	return l
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(l *BaseLogger) { l.level.Store(int64(level)) }
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(l *BaseLogger) { l.out = w }
}

// WithJSONFormat switches the logger to one-line JSON output.
func WithJSONFormat() Option {
	return func(l *BaseLogger) { l.format = "json" }
}

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if Level(l.level.Load()) > level {
		return
	}
	l.slog.LogAttrs(context.Background(), toSlogLevel(level), msg, attrsFromFields(fields)...)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child logger carrying fields on every entry. The child
// shares the parent's level.
func (l *BaseLogger) With(fields ...Field) Logger {
	child := *l
	child.slog = l.slog.With(anyFromFields(fields)...)
	return &child
}

// WithComponent tags logs with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Str("component", component))
}

func (l *BaseLogger) SetLevel(level Level) { l.level.Store(int64(level)) }
func (l *BaseLogger) GetLevel() Level      { return Level(l.level.Load()) }

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)        {}
func (nopLogger) Info(string, ...Field)         {}
func (nopLogger) Warn(string, ...Field)         {}
func (nopLogger) Error(string, ...Field)        {}
func (n nopLogger) With(...Field) Logger        { return n }
func (n nopLogger) WithComponent(string) Logger { return n }
func (nopLogger) SetLevel(Level)                {}
func (nopLogger) GetLevel() Level               { return ErrorLevel }
