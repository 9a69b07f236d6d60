package gnrf

import (
	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = new(logrus.TextFormatter)
	l.Level = logrus.InfoLevel
	return l
}

// SetLogger replaces the package logger. Call it before opening a device.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// SetDebugEnabled turns on tracing of every bus exchange.
func SetDebugEnabled(enabled bool) {
	if enabled {
		log.SetLevel(logrus.TraceLevel)
		return
	}
	log.SetLevel(logrus.InfoLevel)
}
