package internal

import (
	"github.com/sirupsen/logrus"
)

// Logger can be modified by external for testing
var Logger = logrus.New()

// SetLogLevel changes level of Logger by name. Unknown name is ignored.
func SetLogLevel(level string) {
	switch level {
	case "TRACE":
		Logger.SetLevel(logrus.TraceLevel)
	case "DEBUG":
		Logger.SetLevel(logrus.DebugLevel)
	case "INFO":
		Logger.SetLevel(logrus.InfoLevel)
	case "WARN":
		Logger.SetLevel(logrus.WarnLevel)
	case "ERROR":
		Logger.SetLevel(logrus.ErrorLevel)
	}
}

// NewLogger creates a logger sharing output, formatter and hooks with Logger.
// Level of the new logger is independent so that each stream can enable
// debug or trace output by itself.
func NewLogger(debug, trace bool) *logrus.Logger {
	l := logrus.New()
	l.Out = Logger.Out
	l.Formatter = Logger.Formatter
	l.Hooks = Logger.Hooks
	l.ReportCaller = Logger.ReportCaller
	l.SetLevel(Logger.GetLevel())

	switch {
	case trace:
		l.SetLevel(logrus.TraceLevel)
	case debug:
		l.SetLevel(logrus.DebugLevel)
	}

	return l
}
