package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *slog.Logger
	level  slog.Level
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger writing to stdout at the given level
func NewLogger(level string, name string) *Logger {
	return NewLoggerTo(os.Stdout, level, name)
}

// NewLoggerTo creates a Logger writing to w
func NewLoggerTo(w io.Writer, level string, name string) *Logger {
	lvl := ParseLevel(level)
	return &Logger{
		name:   name,
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})),
		level:  lvl,
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing the same output under another component name
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, logger: l.logger, level: l.level}
}

// -----------------------------------------------------------------------------

// ParseLevel converts DEBUG|INFO|WARNING|ERROR to slog.Level. Unknown is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// -----------------------------------------------------------------------------

func (l *Logger) log(level slog.Level, format string, args ...interface{}) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", l.name)
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(slog.LevelDebug, format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log(slog.LevelWarn, format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Log(context.Background(), slog.LevelError, "CRITICAL: "+fmt.Sprintf(format, args...), "component", l.name)
	os.Exit(1)
}
