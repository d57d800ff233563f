package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"service-dispatcher/internal/config"
	"service-dispatcher/internal/logx"
)

// NewLogger builds the process logger from cfg.Log.
func NewLogger(cfg *config.Config) logx.Logger {
	return newLogger(os.Stdout, cfg.Log)
}

func newLogger(w io.Writer, c config.Log) logx.Logger {
	if strings.EqualFold(c.Backend, "zerolog") {
		return logx.NewZerologAdapter(w, c.Level, false)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	base := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	return logx.NewSlogAdapter(base)
}
