package matchbatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
)

// Level log level
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel maps a level name to a Level, falling back to Info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return Debug
	case "warn", "WARN":
		return Warn
	case "error", "ERROR":
		return Error
	}
	return Info
}

// Logger is the logging facade used across the module.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx, the default logger prints it on every line.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id attached to ctx, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

type defaultLogger struct {
	mu     sync.Mutex
	logger *log.Logger
	level  Level
}

// NewLogger create a Logger writing to writer, dropping messages below level
func NewLogger(writer io.Writer, level Level) Logger {
	return &defaultLogger{
		logger: log.New(writer, "", log.LstdFlags|log.Lmicroseconds),
		level:  level,
	}
}

func (l *defaultLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.output(ctx, Debug, msg, args...)
}

func (l *defaultLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.output(ctx, Info, msg, args...)
}

func (l *defaultLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.output(ctx, Warn, msg, args...)
}

func (l *defaultLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.output(ctx, Error, msg, args...)
}

func (l *defaultLogger) output(ctx context.Context, level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	line := msg
	if len(args) > 0 {
		line = fmt.Sprintf(msg, args...)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if runID := RunID(ctx); runID != "" {
		l.logger.Printf("[%s] [run:%s] %s", level, runID, line)
		return
	}
	l.logger.Printf("[%s] %s", level, line)
}
