package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON in production, text otherwise.
func New(environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

func NewWithWriter(w io.Writer, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "rwagate")
}

// Discard returns a logger that drops everything; services default to it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
