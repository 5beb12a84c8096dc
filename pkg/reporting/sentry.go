// Package reporting forwards data engine failures to Sentry.
package reporting

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Sentry reports errors through the global Sentry hub. With an empty DSN the
// SDK drops every event, so a Sentry value is always safe to use.
type Sentry struct {
	enabled bool
}

// Init configures the Sentry SDK. Failures are logged and never fatal.
func Init(dsn, environment, release string, logger *log.Logger) *Sentry {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		logger.Warn("sentry init failed", "error", err)
		return &Sentry{}
	}
	if dsn == "" {
		logger.Debug("sentry disabled, no DSN")
		return &Sentry{}
	}
	logger.Debug("sentry initialized", "environment", environment)
	return &Sentry{enabled: true}
}

func (s *Sentry) Enabled() bool { return s.enabled }

func (s *Sentry) CaptureError(err error, tags map[string]string) {
	if err == nil || !s.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for queued events to be sent.
func (s *Sentry) Flush() {
	if s.enabled {
		sentry.Flush(flushTimeout)
	}
}
