// Package logging provides the structured logger shared by all cache
// components, backed by log/slog.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/tunabay/go-infounit"
)

// Logger wraps an slog.Logger with the helpers the cache components use.
// A nil Logger is not valid; use NewNop to silence output.
type Logger struct {
	sl *slog.Logger
}

// New creates a text logger writing to stderr at the given level.
func New(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{sl: slog.New(handler)}
}

// NewNop creates a logger that discards all messages.
func NewNop() *Logger {
	return &Logger{sl: slog.New(slog.DiscardHandler)}
}

// FromSlog wraps an existing slog.Logger. A nil argument yields a nop logger.
func FromSlog(sl *slog.Logger) *Logger {
	if sl == nil {
		return NewNop()
	}
	return &Logger{sl: sl}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.sl.DebugContext(ctx, msg, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.sl.InfoContext(ctx, msg, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.sl.WarnContext(ctx, msg, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.sl.ErrorContext(ctx, msg, args...)
}

// With returns a logger carrying additional context fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...)}
}

// WithComponent returns a logger tagged with the cache component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithKey returns a logger tagged with a cache key.
func (l *Logger) WithKey(key string) *Logger {
	return l.With("key", key)
}

// WithSize returns a logger tagged with a human-readable byte size.
func (l *Logger) WithSize(size int64) *Logger {
	return l.With("size", infounit.ByteCount(size).String())
}
