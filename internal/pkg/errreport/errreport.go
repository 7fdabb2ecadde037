// Package errreport forwards pipeline failures to Sentry.
package errreport

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	apperrors "hlsfn/internal/pkg/errors"
)

// Reporter is a no-op when built without a DSN.
type Reporter struct {
	enabled bool
}

// Init configures the global Sentry client. An empty dsn returns a disabled
// Reporter.
func Init(dsn, environment, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &Reporter{enabled: true}, nil
}

func (r *Reporter) Enabled() bool { return r != nil && r.enabled }

// Report captures err with tags. Failures caused by the caller (bad payload,
// unknown file, duplicate job) are not reported.
func (r *Reporter) Report(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil || !Reportable(err) {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", string(apperrors.GetCode(err)))
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		var e *apperrors.Error
		if apperrors.As(err, &e) {
			scope.SetTag("op", e.Op)
			if len(e.Fields) > 0 {
				scope.SetContext("fields", sentry.Context(e.Fields))
			}
		}
		hub.CaptureException(err)
	})
}

// Flush waits for buffered events.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.Enabled() {
		return
	}
	sentry.Flush(timeout)
}

// Reportable reports whether err is a server-side failure worth an event.
func Reportable(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.CodeInvalidPayload, apperrors.CodeNotFound, apperrors.CodeConflict:
		return false
	default:
		return true
	}
}
