package interfaces

import (
	"context"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// ControlRepository accesses the master control catalog
type ControlRepository interface {
	// Create stores a catalog control. An empty ID is replaced with a new UUID.
	// Returns ErrDuplicateKey if Code is taken.
	Create(ctx context.Context, control *model.Control) (*model.Control, error)

	Get(ctx context.Context, id types.ControlID) (*model.Control, error)
	GetByCode(ctx context.Context, code string) (*model.Control, error)

	// List returns catalog controls matching filter ordered by Code
	List(ctx context.Context, filter model.ControlFilter) ([]*model.Control, error)

	Update(ctx context.Context, control *model.Control) (*model.Control, error)
	Count(ctx context.Context) (int, error)
}
