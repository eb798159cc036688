package logger

import (
	"log/slog"
	"os"
)

// New returns the structured JSON logger the pipeline components share.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
