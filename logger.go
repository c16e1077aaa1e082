package match

import (
	"io"
	"log/slog"
	"os"
)

// logger is used on lifecycle paths only (restore, shutdown), never while
// matching.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// SilenceLogger discards all engine log output. Convenient in tests.
func SilenceLogger() {
	logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
}
