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

type controlRepository struct {
	mu       sync.RWMutex
	controls map[types.ControlID]*model.Control
}

func newControlRepository() *controlRepository {
	return &controlRepository{
		controls: make(map[types.ControlID]*model.Control),
	}
}

func (r *controlRepository) codeTaken(code string, exceptID types.ControlID) bool {
	for _, c := range r.controls {
		if c.Code == code && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) (*model.Control, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := control.Copy()
	if created.ID == "" {
		created.ID = types.NewControlID()
	}
	if _, exists := r.controls[created.ID]; exists {
		return nil, goerr.Wrap(ErrDuplicateKey, "control already exists", goerr.V("id", created.ID))
	}
	if r.codeTaken(created.Code, "") {
		return nil, goerr.Wrap(ErrDuplicateKey, "control code already exists", goerr.V("code", created.Code))
	}

	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.controls[created.ID] = created
	return created.Copy(), nil
}

func (r *controlRepository) Get(ctx context.Context, id types.ControlID) (*model.Control, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.controls[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", id))
	}
	return c.Copy(), nil
}

func (r *controlRepository) GetByCode(ctx context.Context, code string) (*model.Control, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.controls {
		if c.Code == code {
			return c.Copy(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("code", code))
}

func (r *controlRepository) List(ctx context.Context, filter model.ControlFilter) ([]*model.Control, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Control, 0, len(r.controls))
	for _, c := range r.controls {
		if filter.Match(c) {
			result = append(result, c.Copy())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) (*model.Control, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.controls[control.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", control.ID))
	}
	if r.codeTaken(control.Code, control.ID) {
		return nil, goerr.Wrap(ErrDuplicateKey, "control code already exists", goerr.V("code", control.Code))
	}

	updated := control.Copy()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.controls[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *controlRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controls), nil
}
