// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"

	"github.com/tbxark/intakeagent/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
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

// New returns a JSON logger writing to out and, when cfg.File is set, to a
// rotating file. The returned close function releases the file.
func New(cfg config.LogConfig, out io.Writer) (*slog.Logger, func() error) {
	closer := func() error { return nil }
	if cfg.File != "" {
		logFile := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   true,
		}
		if out == nil {
			out = logFile
		} else {
			out = io.MultiWriter(out, logFile)
		}
		closer = logFile.Close
	}
	if out == nil {
		out = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
	return logger, closer
}
