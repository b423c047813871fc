package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
)

// AllowAllAuthorizer permits every action. It is the default policy.
type AllowAllAuthorizer struct{}

var _ interfaces.Authorizer = &AllowAllAuthorizer{}

func (a *AllowAllAuthorizer) Authorize(ctx context.Context, actor string, action interfaces.Action, resource string) error {
	return nil
}

// ReadOnlyAuthorizer permits reads only. It backs the server's --read-only mode.
type ReadOnlyAuthorizer struct{}

var _ interfaces.Authorizer = &ReadOnlyAuthorizer{}

func (a *ReadOnlyAuthorizer) Authorize(ctx context.Context, actor string, action interfaces.Action, resource string) error {
	if action == interfaces.ActionRead {
		return nil
	}
	return goerr.Wrap(ErrForbidden, "server is read-only",
		goerr.V("actor", actor),
		goerr.V("action", action),
		goerr.V("resource", resource))
}
