package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Logger provides leveled, printf-style logging throughout the application
// on top of a structured slog handler.
type Logger struct {
	sl *slog.Logger
}

// LoggerOptions selects where and how log records are written.
type LoggerOptions struct {
	Writer io.Writer
	Level  slog.Level
	JSON   bool
	// NoColor disables ANSI colors in the text handler.
	NoColor bool
}

// NewLogger creates a Logger writing colored text to stdout at info level.
func NewLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: slog.LevelInfo})
}

// NewLoggerWithOptions builds a Logger from explicit options.
func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    opts.NoColor,
		})
	}
	return &Logger{sl: slog.New(handler)}
}

// NewDiscardLogger returns a Logger that drops everything. Handy in tests.
func NewDiscardLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Writer: io.Discard, Level: slog.LevelError + 4, NoColor: true})
}

// ParseLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger that attaches the given key/value pairs to
// every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...)}
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	if !l.sl.Enabled(context.Background(), level) {
		return
	}
	l.sl.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}
