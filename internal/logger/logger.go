package logger

import (
	"github.com/sirupsen/logrus"
)

var (
	// Log is the logger
	Log *logrus.Logger
)

func init() {
	Log = logrus.New()
	Log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
}

// SetLevel sets the log level, falling back to info for unknown names.
func SetLevel(level string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		Log.Warnf("unknown log level %q, using info", level)
		l = logrus.InfoLevel
	}

	Log.SetLevel(l)
}
