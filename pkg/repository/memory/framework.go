package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
)

type frameworkRepository struct {
	mu         sync.RWMutex
	frameworks map[int64]*model.Framework
	nextID     int64
}

func newFrameworkRepository() *frameworkRepository {
	return &frameworkRepository{
		frameworks: make(map[int64]*model.Framework),
		nextID:     1,
	}
}

func (r *frameworkRepository) codeTaken(code string, exceptID int64) bool {
	for _, f := range r.frameworks {
		if f.Code == code && f.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *frameworkRepository) Create(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.codeTaken(framework.Code, 0) {
		return nil, goerr.Wrap(ErrDuplicateKey, "framework code already exists", goerr.V("code", framework.Code))
	}

	now := time.Now().UTC()
	created := framework.Copy()
	created.ID = r.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	r.nextID++

	r.frameworks[created.ID] = created
	return created.Copy(), nil
}

func (r *frameworkRepository) Get(ctx context.Context, id int64) (*model.Framework, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.frameworks[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
	}

	// Return a copy to prevent external modification
	return f.Copy(), nil
}

func (r *frameworkRepository) GetByCode(ctx context.Context, code string) (*model.Framework, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.frameworks {
		if f.Code == code {
			return f.Copy(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("code", code))
}

func (r *frameworkRepository) List(ctx context.Context, query model.FrameworkQuery) (*model.FrameworkPage, error) {
	r.mu.RLock()
	all := make([]*model.Framework, 0, len(r.frameworks))
	for _, f := range r.frameworks {
		all = append(all, f.Copy())
	}
	r.mu.RUnlock()

	return query.Paginate(all), nil
}

func (r *frameworkRepository) Update(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.frameworks[framework.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", framework.ID))
	}
	if r.codeTaken(framework.Code, framework.ID) {
		return nil, goerr.Wrap(ErrDuplicateKey, "framework code already exists", goerr.V("code", framework.Code))
	}

	updated := framework.Copy()
	updated.Progress = existing.Progress
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.frameworks[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *frameworkRepository) UpdateProgress(ctx context.Context, id int64, progress model.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, exists := r.frameworks[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
	}
	f.Progress = progress
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *frameworkRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.frameworks[id]; !exists {
		return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
	}

	delete(r.frameworks, id)
	return nil
}
