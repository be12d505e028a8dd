package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"itchbook/infra/config"
)

// New builds the process logger: JSON to stderr and, when cfg.Logging.File
// is set, to a rotating file as well. Stdout carries only the depth report.
func New(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(writer(cfg.Logging.File), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Logging.Level),
	}))
}

func writer(file string) io.Writer {
	if file == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		// Fall back to stderr only; the caller still gets a usable logger.
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
}

func ParseLevel(s string) slog.Level {
	switch s {
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
