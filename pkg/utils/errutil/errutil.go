package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

// Handle logs the error with goerr context values and stack, and reports it to Sentry
// when a client is configured.
func Handle(ctx context.Context, err error, msg string, attrs ...any) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)

	args := append([]any{slog.String("error", err.Error())}, attrs...)
	var ge *goerr.Error
	if errors.As(err, &ge) {
		args = append(args,
			slog.Any("values", ge.Values()),
			slog.Any("stack", ge.Stacks()),
		)
	}
	logger.Error(msg, args...)

	report(ctx, err)
}

func report(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var ge *goerr.Error
		if errors.As(err, &ge) {
			if values := ge.Values(); len(values) > 0 {
				scope.SetContext("goerr", sentry.Context(values))
			}
		}
		evID := hub.CaptureException(err)
		if evID != nil {
			logging.From(ctx).Info("error reported to sentry", slog.String("event_id", string(*evID)))
		}
	})
}
