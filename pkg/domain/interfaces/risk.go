package interfaces

import (
	"context"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// RiskRepository stores risk records. LinkedControls is ignored on write and left empty on read;
// link rows live in RiskControlRepository.
type RiskRepository interface {
	// Create creates a new risk with auto-generated ID. Returns ErrDuplicateKey if RiskID is taken.
	Create(ctx context.Context, risk *model.Risk) (*model.Risk, error)

	Get(ctx context.Context, id int64) (*model.Risk, error)
	GetByRiskID(ctx context.Context, riskID string) (*model.Risk, error)

	// List returns risks matching filter ordered by ID
	List(ctx context.Context, filter model.RiskFilter) ([]*model.Risk, error)

	Update(ctx context.Context, risk *model.Risk) (*model.Risk, error)

	// Delete removes the risk together with its link rows
	Delete(ctx context.Context, id int64) error
}

// RiskControlRepository manages the junction between risks and catalog controls
type RiskControlRepository interface {
	// Replace atomically deletes every link of riskID and inserts one link per control ID.
	// Returns ErrNotFound if a control is not in the catalog; existing links are then kept.
	Replace(ctx context.Context, riskID int64, controlIDs []types.ControlID, createdBy string) error

	ListByRisk(ctx context.Context, riskID int64) ([]*model.RiskControl, error)

	// ListByRisks loads link rows for many risks at once. Every requested risk ID has an entry.
	ListByRisks(ctx context.Context, riskIDs []int64) (map[int64][]*model.RiskControl, error)

	ListRiskIDsByControl(ctx context.Context, controlID types.ControlID) ([]int64, error)
	DeleteByRisk(ctx context.Context, riskID int64) error
}
