package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"gorm.io/gorm"
)

type riskRepository struct {
	db *gorm.DB
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	rec := newRiskRecord(risk)
	rec.ID = 0
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, translateError(err, "failed to create risk", goerr.V("riskID", risk.RiskID))
	}
	return rec.toModel(), nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	var rec riskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "risk not found", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *riskRepository) GetByRiskID(ctx context.Context, riskID string) (*model.Risk, error) {
	var rec riskRecord
	if err := r.db.WithContext(ctx).First(&rec, "risk_code = ?", riskID).Error; err != nil {
		return nil, translateError(err, "risk not found", goerr.V("riskID", riskID))
	}
	return rec.toModel(), nil
}

func (r *riskRepository) List(ctx context.Context, filter model.RiskFilter) ([]*model.Risk, error) {
	tx := r.db.WithContext(ctx)
	if filter.Treatment != "" {
		tx = tx.Where("treatment = ?", string(filter.Treatment))
	}
	if filter.BusinessUnit != "" {
		tx = tx.Where("business_unit = ?", filter.BusinessUnit)
	}
	if filter.RiskOwner != "" {
		tx = tx.Where("risk_owner = ?", filter.RiskOwner)
	}
	if filter.Search != "" {
		like := likePattern(filter.Search)
		tx = tx.Where("risk_code ILIKE ? OR title ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var records []riskRecord
	if err := tx.Order("id ASC").Find(&records).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}

	risks := make([]*model.Risk, 0, len(records))
	for i := range records {
		risks = append(risks, records[i].toModel())
	}
	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	rec := newRiskRecord(risk)
	rec.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&riskRecord{}).
		Where("id = ?", risk.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to update risk", goerr.V("id", risk.ID))
	}
	if result.RowsAffected == 0 {
		return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", risk.ID))
	}

	return r.Get(ctx, risk.ID)
}

func (r *riskRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&riskControlRecord{}, "risk_id = ?", id).Error; err != nil {
			return goerr.Wrap(err, "failed to delete risk controls", goerr.V("id", id))
		}

		result := tx.Delete(&riskRecord{}, "id = ?", id)
		if result.Error != nil {
			return goerr.Wrap(result.Error, "failed to delete risk", goerr.V("id", id))
		}
		if result.RowsAffected == 0 {
			return goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
		}
		return nil
	})
}
