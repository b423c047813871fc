package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type riskControlRepository struct {
	db *gorm.DB
}

func (r *riskControlRepository) Replace(ctx context.Context, riskID int64, controlIDs []types.ControlID, createdBy string) error {
	ids := model.UniqueControlIDs(controlIDs)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&riskControlRecord{}, "risk_id = ?", riskID).Error; err != nil {
			return goerr.Wrap(err, "failed to delete risk controls", goerr.V("riskID", riskID))
		}
		if len(ids) == 0 {
			return nil
		}

		now := time.Now().UTC()
		rows := make([]riskControlRecord, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, riskControlRecord{
				RiskID:    riskID,
				ControlID: string(id),
				CreatedAt: now,
				CreatedBy: createdBy,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return translateError(err, "failed to insert risk controls",
				goerr.V("riskID", riskID),
				goerr.V("controlIDs", ids))
		}
		return nil
	})
}

func (r *riskControlRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.RiskControl, error) {
	links, err := r.ListByRisks(ctx, []int64{riskID})
	if err != nil {
		return nil, err
	}
	return links[riskID], nil
}

func (r *riskControlRepository) ListByRisks(ctx context.Context, riskIDs []int64) (map[int64][]*model.RiskControl, error) {
	result := make(map[int64][]*model.RiskControl, len(riskIDs))
	for _, id := range riskIDs {
		result[id] = []*model.RiskControl{}
	}
	if len(riskIDs) == 0 {
		return result, nil
	}

	var rows []riskControlRecord
	if err := r.db.WithContext(ctx).
		Where("risk_id IN ?", riskIDs).
		Order("risk_id ASC, control_id ASC").
		Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list risk controls", goerr.V("riskIDs", riskIDs))
	}

	for i := range rows {
		result[rows[i].RiskID] = append(result[rows[i].RiskID], rows[i].toModel())
	}
	return result, nil
}

func (r *riskControlRepository) ListRiskIDsByControl(ctx context.Context, controlID types.ControlID) ([]int64, error) {
	riskIDs := []int64{}
	if err := controlID.Validate(); err != nil {
		return riskIDs, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&riskControlRecord{}).
		Where("control_id = ?", string(controlID)).
		Order("risk_id ASC").
		Pluck("risk_id", &riskIDs).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list risks by control", goerr.V("controlID", controlID))
	}
	return riskIDs, nil
}

func (r *riskControlRepository) DeleteByRisk(ctx context.Context, riskID int64) error {
	if err := r.db.WithContext(ctx).Delete(&riskControlRecord{}, "risk_id = ?", riskID).Error; err != nil {
		return goerr.Wrap(err, "failed to delete risk controls", goerr.V("riskID", riskID))
	}
	return nil
}
