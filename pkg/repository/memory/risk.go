package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
)

type riskRepository struct {
	mu     sync.RWMutex
	risks  map[int64]*model.Risk
	nextID int64
	// Link rows are cascade-deleted together with their risk
	links *riskControlRepository
}

func newRiskRepository(links *riskControlRepository) *riskRepository {
	return &riskRepository{
		risks:  make(map[int64]*model.Risk),
		nextID: 1,
		links:  links,
	}
}

func (r *riskRepository) riskIDTaken(riskID string, exceptID int64) bool {
	for _, risk := range r.risks {
		if risk.RiskID == riskID && risk.ID != exceptID {
			return true
		}
	}
	return false
}

func stored(risk *model.Risk) *model.Risk {
	copied := risk.Copy()
	copied.LinkedControls = nil
	return copied
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.riskIDTaken(risk.RiskID, 0) {
		return nil, goerr.Wrap(ErrDuplicateKey, "riskId already exists", goerr.V("riskID", risk.RiskID))
	}

	now := time.Now().UTC()
	created := stored(risk)
	created.ID = r.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	r.nextID++

	r.risks[created.ID] = created
	return created.Copy(), nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	risk, exists := r.risks[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
	}

	// Return a copy to prevent external modification
	return risk.Copy(), nil
}

func (r *riskRepository) GetByRiskID(ctx context.Context, riskID string) (*model.Risk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, risk := range r.risks {
		if risk.RiskID == riskID {
			return risk.Copy(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("riskID", riskID))
}

func (r *riskRepository) List(ctx context.Context, filter model.RiskFilter) ([]*model.Risk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	risks := make([]*model.Risk, 0, len(r.risks))
	for _, risk := range r.risks {
		if filter.Match(risk) {
			risks = append(risks, risk.Copy())
		}
	}
	sort.Slice(risks, func(i, j int) bool { return risks[i].ID < risks[j].ID })

	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.risks[risk.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", risk.ID))
	}
	if r.riskIDTaken(risk.RiskID, risk.ID) {
		return nil, goerr.Wrap(ErrDuplicateKey, "riskId already exists", goerr.V("riskID", risk.RiskID))
	}

	updated := stored(risk)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.risks[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *riskRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.risks[id]; !exists {
		return goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
	}

	delete(r.risks, id)
	return r.links.DeleteByRisk(ctx, id)
}
