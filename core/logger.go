package core

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (zap, a LogSink, or nothing at all)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// =============================================================================
// ZapLogger
// =============================================================================

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger wraps z. A nil z yields a no-op zap logger.
func NewZapLogger(z *zap.Logger) *ZapLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{z: z}
}

// NewDefaultLogger creates a zap production logger wrapped as a Logger.
// It falls back to a no-op logger if zap cannot build its sinks.
func NewDefaultLogger() *ZapLogger {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	return NewZapLogger(z)
}

// Zap returns the underlying zap logger
func (l *ZapLogger) Zap() *zap.Logger { return l.z }

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error { return l.z.Sync() }

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, zapFields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, zapFields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, zapFields(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, zapFields(fields)...) }

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// =============================================================================
// Level-based sinks
// =============================================================================

// Level is the severity of a message handed to a LogSink.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// LogSink is the minimal logging collaborator: one call per formatted message.
type LogSink interface {
	Log(level Level, message string)
}

// LogSinkFunc adapts a plain function to LogSink.
type LogSinkFunc func(level Level, message string)

func (f LogSinkFunc) Log(level Level, message string) { f(level, message) }

// SinkLogger formats structured messages into a single line and forwards them to a LogSink.
// Messages below min are dropped before formatting.
type SinkLogger struct {
	sink LogSink
	min  Level
}

// NewSinkLogger creates a Logger writing to sink. A nil sink discards everything.
func NewSinkLogger(sink LogSink, min Level) *SinkLogger {
	return &SinkLogger{sink: sink, min: min}
}

func (l *SinkLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *SinkLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *SinkLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarning, msg, fields) }
func (l *SinkLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *SinkLogger) log(level Level, msg string, fields []Field) {
	if l.sink == nil || level < l.min {
		return
	}
	if len(fields) == 0 {
		l.sink.Log(level, msg)
		return
	}

	var b strings.Builder
	b.WriteString(msg)
	b.WriteString(" {")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
	}
	b.WriteString("}")
	l.sink.Log(level, b.String())
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
