package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
)

type frameworkControlRepository struct {
	mu       sync.RWMutex
	controls map[int64]*model.FrameworkControl
	nextID   int64
}

func newFrameworkControlRepository() *frameworkControlRepository {
	return &frameworkControlRepository{
		controls: make(map[int64]*model.FrameworkControl),
		nextID:   1,
	}
}

func (r *frameworkControlRepository) Create(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := control.Copy()
	created.ID = r.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	r.nextID++

	r.controls[created.ID] = created
	return created.Copy(), nil
}

func (r *frameworkControlRepository) Get(ctx context.Context, id int64) (*model.FrameworkControl, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.controls[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", id))
	}
	return c.Copy(), nil
}

func (r *frameworkControlRepository) collect(match func(*model.FrameworkControl) bool) []*model.FrameworkControl {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.FrameworkControl, 0)
	for _, c := range r.controls {
		if match(c) {
			result = append(result, c.Copy())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *frameworkControlRepository) List(ctx context.Context) ([]*model.FrameworkControl, error) {
	return r.collect(func(*model.FrameworkControl) bool { return true }), nil
}

func (r *frameworkControlRepository) ListByFramework(ctx context.Context, frameworkID int64, domain string) ([]*model.FrameworkControl, error) {
	return r.collect(func(c *model.FrameworkControl) bool {
		if !c.InFramework(frameworkID) {
			return false
		}
		return domain == "" || c.Domain == domain
	}), nil
}

func (r *frameworkControlRepository) Update(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.controls[control.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", control.ID))
	}

	updated := control.Copy()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.controls[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *frameworkControlRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.controls[id]; !exists {
		return goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", id))
	}
	delete(r.controls, id)
	return nil
}

func (r *frameworkControlRepository) UnassignFramework(ctx context.Context, frameworkID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, c := range r.controls {
		if c.InFramework(frameworkID) {
			c.FrameworkID = nil
			c.UpdatedAt = now
		}
	}
	return nil
}
