package logx

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter adapts a zerolog.Logger to the logx.Logger interface.
type ZerologAdapter struct {
	l zerolog.Logger
}

// NewZerologAdapter returns a Logger writing JSON lines to w at the given level.
// When pretty is set, output goes through zerolog.ConsoleWriter.
func NewZerologAdapter(w io.Writer, level string, pretty bool) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &ZerologAdapter{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) { emit(z.l.Debug(), msg, fields) }

func (z *ZerologAdapter) Info(msg string, fields ...Field) { emit(z.l.Info(), msg, fields) }

func (z *ZerologAdapter) Warn(msg string, fields ...Field) { emit(z.l.Warn(), msg, fields) }

func (z *ZerologAdapter) Error(msg string, fields ...Field) { emit(z.l.Error(), msg, fields) }

// With returns a child logger carrying the fields.
func (z *ZerologAdapter) With(fields ...Field) Logger {
	ctx := z.l.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &ZerologAdapter{l: ctx.Logger()}
}

// Sync is a no-op: zerolog writes synchronously.
func (z *ZerologAdapter) Sync() error { return nil }

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}
