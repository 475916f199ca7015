// Package logging provides the engine's structured logger, a thin wrapper
// over log/slog so indexing and search stages can attach consistent
// fields (index name, stage, duration) without every call site building
// slog.Attr slices by hand.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Config controls how a Logger is constructed.
type Config struct {
	// Level is the minimum level logged: "debug", "info", "warn", "error".
	Level string
	// Format is "json" or "text".
	Format string
	// Output defaults to os.Stderr when nil.
	Output io.Writer
	// AddSource adds the calling file:line to each record.
	AddSource bool
}

// DefaultConfig returns sane defaults: info level, text output, no source.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps slog.Logger with engine-specific helpers.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{base: slog.New(handler)}
}

// Discard returns a Logger that drops everything. Used as the default when
// callers pass a nil *Logger into the pipelines.
func Discard() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with the given key/value pairs attached to every
// subsequent record, mirroring slog.Logger.With.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{base: l.base.With(args...)}
}

// WithIndex scopes the logger to a single index name.
func (l *Logger) WithIndex(index string) *Logger {
	return l.With("index", index)
}

// Stage logs a single stage-transition record, used by both pipelines to
// satisfy the per-stage timing/observability requirement.
func (l *Logger) Stage(ctx context.Context, stage string, durationMS int64, fields ...any) {
	if l == nil {
		return
	}
	args := append([]any{"stage", stage, "duration_ms", durationMS}, fields...)
	l.base.InfoContext(ctx, "stage", args...)
}

func (l *Logger) Info(msg string, args ...any) {
	if l == nil {
		return
	}
	l.base.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		return
	}
	l.base.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil {
		return
	}
	l.base.Error(msg, args...)
}
