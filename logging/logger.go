package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// CreateLogger returns a JSON logger for PROD and a text logger otherwise.
func CreateLogger(env string) *slog.Logger {
	return NewLogger(os.Stderr, env)
}

func NewLogger(w io.Writer, env string) *slog.Logger {
	if env == "PROD" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, falling back to fallback and
// then to slog.Default.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
