package interfaces

import "context"

// Action is an operation kind checked by an Authorizer
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Authorizer decides whether actor may perform action on resource.
// It returns nil to allow, or an error wrapping ErrForbidden to deny.
type Authorizer interface {
	Authorize(ctx context.Context, actor string, action Action, resource string) error
}
