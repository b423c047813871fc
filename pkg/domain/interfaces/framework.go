package interfaces

import (
	"context"

	"github.com/secmon-lab/grcops/pkg/domain/model"
)

type FrameworkRepository interface {
	// Create creates a new framework with auto-generated ID. Returns ErrDuplicateKey if Code is taken.
	Create(ctx context.Context, framework *model.Framework) (*model.Framework, error)

	Get(ctx context.Context, id int64) (*model.Framework, error)
	GetByCode(ctx context.Context, code string) (*model.Framework, error)

	// List returns one page of frameworks. The query must already be normalized.
	List(ctx context.Context, query model.FrameworkQuery) (*model.FrameworkPage, error)

	// Update replaces all mutable attributes except Progress. Returns ErrDuplicateKey if Code is taken.
	Update(ctx context.Context, framework *model.Framework) (*model.Framework, error)

	// UpdateProgress overwrites only the rollup counters
	UpdateProgress(ctx context.Context, id int64, progress model.Progress) error

	Delete(ctx context.Context, id int64) error
}

type FrameworkControlRepository interface {
	Create(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error)
	Get(ctx context.Context, id int64) (*model.FrameworkControl, error)

	// List returns every framework control, assigned or not, ordered by ID
	List(ctx context.Context) ([]*model.FrameworkControl, error)

	// ListByFramework returns controls assigned to frameworkID ordered by ID. Empty domain means all domains.
	ListByFramework(ctx context.Context, frameworkID int64, domain string) ([]*model.FrameworkControl, error)

	Update(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error)
	Delete(ctx context.Context, id int64) error

	// UnassignFramework sets FrameworkID to nil on every control assigned to frameworkID
	UnassignFramework(ctx context.Context, frameworkID int64) error
}
