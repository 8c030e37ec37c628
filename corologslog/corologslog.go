// Package corologslog adapts the corort/logiface-slog ecosystem to the
// corort.Logger contract, for applications that already standardize their
// structured logging on github.com/joeycumines/logiface rather than plain
// log/slog (see corort.NewStdLogger for the zero-dependency default).
package corologslog

import (
	"log/slog"

	"github.com/joeycumines/go-corort"
	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// New adapts handler into a corort.Logger, via a logiface.Logger[*Event]
// built from the logiface-slog bridge.
func New(handler slog.Handler) corort.Logger {
	l := logiface.New[*logifaceslog.Event](logifaceslog.NewLogger(handler))
	return &adapter{l: l}
}

type adapter struct {
	l *logiface.Logger[*logifaceslog.Event]
}

func (a *adapter) Enabled(level corort.Level) bool {
	return a.l.Level() >= toLogifaceLevel(level)
}

func (a *adapter) Log(level corort.Level, msg string, fields ...corort.Field) {
	b := a.l.Build(toLogifaceLevel(level))
	if b == nil {
		return
	}
	for _, f := range fields {
		applyField(b, f)
	}
	b.Log(msg)
}

func applyField(b *logiface.Builder[*logifaceslog.Event], f corort.Field) {
	switch v := f.Value.(type) {
	case string:
		b.Str(f.Key, v)
	case int:
		b.Int(f.Key, v)
	case int64:
		b.Int64(f.Key, v)
	case bool:
		b.Bool(f.Key, v)
	case float64:
		b.Float64(f.Key, v)
	case error:
		b.Err(v)
	default:
		b.Any(f.Key, v)
	}
}

func toLogifaceLevel(level corort.Level) logiface.Level {
	switch {
	case level <= corort.LevelTrace:
		return logiface.LevelTrace
	case level == corort.LevelDebug:
		return logiface.LevelDebug
	case level == corort.LevelInfo:
		return logiface.LevelInformational
	case level == corort.LevelWarn:
		return logiface.LevelWarning
	default:
		return logiface.LevelError
	}
}
