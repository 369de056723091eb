package internal

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var sentryEnabled = false

// InitErrorHandler enables sentry if dsn is given.
func InitErrorHandler(dsn, env string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
	})
	if err != nil {
		return errors.Wrap(err, "Failed sentry.Init")
	}
	sentryEnabled = true
	return nil
}

// HandleError logs err and sends it to sentry if sentry configuration is available
func HandleError(err error, entry *logrus.Entry) {
	if entry == nil {
		entry = logrus.NewEntry(Logger)
	}
	r := entry.WithError(err)

	if sentryEnabled {
		eventID := sentry.CaptureException(err)
		if eventID != nil {
			r = r.WithField("sentry eventID", *eventID)
		}
	}

	r.Error("Error")
}

// FlushError flushs error to sentry
func FlushError() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
