package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

type riskControlRepository struct {
	mu       sync.RWMutex
	links    map[int64][]model.RiskControl
	controls *controlRepository
}

func newRiskControlRepository(controls *controlRepository) *riskControlRepository {
	return &riskControlRepository{
		links:    make(map[int64][]model.RiskControl),
		controls: controls,
	}
}

func (r *riskControlRepository) controlExists(id types.ControlID) bool {
	r.controls.mu.RLock()
	defer r.controls.mu.RUnlock()
	_, ok := r.controls.controls[id]
	return ok
}

func (r *riskControlRepository) Replace(ctx context.Context, riskID int64, controlIDs []types.ControlID, createdBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := model.UniqueControlIDs(controlIDs)
	for _, id := range ids {
		if !r.controlExists(id) {
			return goerr.Wrap(ErrNotFound, "control not found", goerr.V("controlID", id))
		}
	}
	if len(ids) == 0 {
		delete(r.links, riskID)
		return nil
	}

	now := time.Now().UTC()
	rows := make([]model.RiskControl, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.RiskControl{
			RiskID:    riskID,
			ControlID: id,
			CreatedAt: now,
			CreatedBy: createdBy,
		})
	}
	r.links[riskID] = rows
	return nil
}

func copyLinks(rows []model.RiskControl) []*model.RiskControl {
	result := make([]*model.RiskControl, 0, len(rows))
	for _, row := range rows {
		copied := row
		result = append(result, &copied)
	}
	return result
}

func (r *riskControlRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.RiskControl, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyLinks(r.links[riskID]), nil
}

func (r *riskControlRepository) ListByRisks(ctx context.Context, riskIDs []int64) (map[int64][]*model.RiskControl, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[int64][]*model.RiskControl, len(riskIDs))
	for _, riskID := range riskIDs {
		result[riskID] = copyLinks(r.links[riskID])
	}
	return result, nil
}

func (r *riskControlRepository) ListRiskIDsByControl(ctx context.Context, controlID types.ControlID) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	riskIDs := make([]int64, 0)
	for riskID, rows := range r.links {
		for _, row := range rows {
			if row.ControlID == controlID {
				riskIDs = append(riskIDs, riskID)
				break
			}
		}
	}
	sort.Slice(riskIDs, func(i, j int) bool { return riskIDs[i] < riskIDs[j] })
	return riskIDs, nil
}

func (r *riskControlRepository) DeleteByRisk(ctx context.Context, riskID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.links, riskID)
	return nil
}
