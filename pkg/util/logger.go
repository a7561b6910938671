package util

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger: human-readable text in
// development, JSON elsewhere. It is also installed as the slog default so
// library code logging through slog ends up in the same stream.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
