package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type frameworkControlRepository struct {
	db *gorm.DB
}

func (r *frameworkControlRepository) Create(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	rec := newFrameworkControlRecord(control)
	rec.ID = 0
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, translateError(err, "failed to create framework control")
	}
	return rec.toModel(), nil
}

func (r *frameworkControlRepository) Get(ctx context.Context, id int64) (*model.FrameworkControl, error) {
	var rec frameworkControlRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "framework control not found", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *frameworkControlRepository) find(tx *gorm.DB) ([]*model.FrameworkControl, error) {
	var records []frameworkControlRecord
	if err := tx.Order("id ASC").Find(&records).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list framework controls")
	}

	controls := make([]*model.FrameworkControl, 0, len(records))
	for i := range records {
		controls = append(controls, records[i].toModel())
	}
	return controls, nil
}

func (r *frameworkControlRepository) List(ctx context.Context) ([]*model.FrameworkControl, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *frameworkControlRepository) ListByFramework(ctx context.Context, frameworkID int64, domain string) ([]*model.FrameworkControl, error) {
	tx := r.db.WithContext(ctx).Where("framework_id = ?", frameworkID)
	if domain != "" {
		tx = tx.Where("domain = ?", domain)
	}
	return r.find(tx)
}

func (r *frameworkControlRepository) Update(ctx context.Context, control *model.FrameworkControl) (*model.FrameworkControl, error) {
	rec := newFrameworkControlRecord(control)
	rec.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&frameworkControlRecord{}).
		Where("id = ?", control.ID).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(rec)
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to update framework control", goerr.V("id", control.ID))
	}
	if result.RowsAffected == 0 {
		return nil, goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", control.ID))
	}

	return r.Get(ctx, control.ID)
}

func (r *frameworkControlRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&frameworkControlRecord{}, "id = ?", id)
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete framework control", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "framework control not found", goerr.V("id", id))
	}
	return nil
}

func (r *frameworkControlRepository) UnassignFramework(ctx context.Context, frameworkID int64) error {
	if err := r.db.WithContext(ctx).
		Model(&frameworkControlRecord{}).
		Where("framework_id = ?", frameworkID).
		Updates(map[string]any{
			"framework_id": nil,
			"updated_at":   time.Now().UTC(),
		}).Error; err != nil {
		return goerr.Wrap(err, "failed to unassign framework controls", goerr.V("frameworkID", frameworkID))
	}
	return nil
}
