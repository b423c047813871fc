package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"gorm.io/gorm"
)

type controlRepository struct {
	db *gorm.DB
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) (*model.Control, error) {
	rec := newControlRecord(control)
	if rec.ID == "" {
		rec.ID = string(types.NewControlID())
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, translateError(err, "failed to create control", goerr.V("code", control.Code))
	}
	return rec.toModel(), nil
}

func (r *controlRepository) Get(ctx context.Context, id types.ControlID) (*model.Control, error) {
	// Non-UUID input would make postgres reject the cast rather than return no rows
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", id))
	}

	var rec controlRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error; err != nil {
		return nil, translateError(err, "control not found", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *controlRepository) GetByCode(ctx context.Context, code string) (*model.Control, error) {
	var rec controlRecord
	if err := r.db.WithContext(ctx).First(&rec, "control_id = ?", code).Error; err != nil {
		return nil, translateError(err, "control not found", goerr.V("code", code))
	}
	return rec.toModel(), nil
}

func (r *controlRepository) List(ctx context.Context, filter model.ControlFilter) ([]*model.Control, error) {
	tx := r.db.WithContext(ctx)
	if filter.Domain != "" {
		tx = tx.Where("domain = ?", filter.Domain)
	}
	if filter.Source != "" {
		tx = tx.Where("source = ?", filter.Source)
	}
	if filter.Search != "" {
		like := likePattern(filter.Search)
		tx = tx.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	var records []controlRecord
	if err := tx.Order("control_id ASC").Find(&records).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list controls")
	}

	controls := make([]*model.Control, 0, len(records))
	for i := range records {
		controls = append(controls, records[i].toModel())
	}
	return controls, nil
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) (*model.Control, error) {
	rec := newControlRecord(control)
	rec.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&controlRecord{}).
		Where("id = ?", string(control.ID)).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to update control", goerr.V("id", control.ID))
	}
	if result.RowsAffected == 0 {
		return nil, goerr.Wrap(ErrNotFound, "control not found", goerr.V("id", control.ID))
	}

	return r.Get(ctx, control.ID)
}

func (r *controlRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&controlRecord{}).Count(&count).Error; err != nil {
		return 0, goerr.Wrap(err, "failed to count controls")
	}
	return int(count), nil
}
