package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the leveled key/value logger used across the application.
// Keys and values alternate in keysAndValues, e.g.
// log.Error("failed to send", "error", err, "user_id", id).
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

type zerologLogger struct {
	zl zerolog.Logger
}

func New(level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &zerologLogger{zl: zl}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

func (l *zerologLogger) Debug(msg string, keysAndValues ...any) {
	withFields(l.zl.Debug(), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Info(msg string, keysAndValues ...any) {
	withFields(l.zl.Info(), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, keysAndValues ...any) {
	withFields(l.zl.Warn(), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Error(msg string, keysAndValues ...any) {
	withFields(l.zl.Error(), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, keysAndValues ...any) {
	withFields(l.zl.Fatal(), keysAndValues).Msg(msg)
}

func (l *zerologLogger) With(keysAndValues ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ctx = ctx.Interface(asKey(keysAndValues[i]), keysAndValues[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func withFields(ev *zerolog.Event, keysAndValues []any) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		ev = ev.Interface(asKey(keysAndValues[i]), keysAndValues[i+1])
	}
	return ev
}

func asKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
