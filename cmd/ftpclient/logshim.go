package main

import (
	"github.com/sirupsen/logrus"

	golog "github.com/fclairamb/ftpclientcore/log"
)

// logrusLogger adapts a *logrus.Entry to the golog.Logger facade, the way
// log/go-kit.go adapts a go-kit logger to the same interface: the engine
// never imports logrus directly, only the narrow interface it already
// defines for itself.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogrusLogger(entry *logrus.Entry) golog.Logger {
	return logrusLogger{entry: entry}
}

func (l logrusLogger) fields(keyvals ...interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keyvals)/2)

	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}

		fields[key] = keyvals[i+1]
	}

	return fields
}

func (l logrusLogger) Debug(event string, keyvals ...interface{}) {
	l.entry.WithFields(l.fields(keyvals...)).Debug(event)
}

func (l logrusLogger) Info(event string, keyvals ...interface{}) {
	l.entry.WithFields(l.fields(keyvals...)).Info(event)
}

func (l logrusLogger) Warn(event string, keyvals ...interface{}) {
	l.entry.WithFields(l.fields(keyvals...)).Warn(event)
}

func (l logrusLogger) Error(event string, err error, keyvals ...interface{}) {
	entry := l.entry.WithFields(l.fields(keyvals...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(event)
}

func (l logrusLogger) With(keyvals ...interface{}) golog.Logger {
	return logrusLogger{entry: l.entry.WithFields(l.fields(keyvals...))}
}
