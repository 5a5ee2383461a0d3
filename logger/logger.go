package logger

import (
	"io"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the structured logging interface used across the service.
// Keyvals are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

type kitLogger struct {
	srcLogger kitlog.Logger
}

// New returns a Logger that writes logfmt lines to w.
func New(w io.Writer) Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
	return &kitLogger{srcLogger: l}
}

// NewNop returns a Logger that discards everything. Useful in tests.
func NewNop() Logger {
	return &kitLogger{srcLogger: kitlog.NewNopLogger()}
}

func (l *kitLogger) Debug(msg string, keyvals ...interface{}) {
	level.Debug(l.srcLogger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *kitLogger) Info(msg string, keyvals ...interface{}) {
	level.Info(l.srcLogger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *kitLogger) Error(msg string, keyvals ...interface{}) {
	level.Error(l.srcLogger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (l *kitLogger) With(keyvals ...interface{}) Logger {
	return &kitLogger{srcLogger: kitlog.With(l.srcLogger, keyvals...)}
}
