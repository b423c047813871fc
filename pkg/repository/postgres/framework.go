package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type frameworkRepository struct {
	db *gorm.DB
}

var frameworkSortColumns = map[model.FrameworkSortKey]string{
	model.SortByName:                 "name",
	model.SortByCode:                 "code",
	model.SortByCreatedAt:            "created_at",
	model.SortByUpdatedAt:            "updated_at",
	model.SortByCompletionPercentage: "completion_percentage",
}

func (r *frameworkRepository) Create(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	rec := newFrameworkRecord(framework)
	rec.ID = 0
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, translateError(err, "failed to create framework", goerr.V("code", framework.Code))
	}
	return rec.toModel(), nil
}

func (r *frameworkRepository) Get(ctx context.Context, id int64) (*model.Framework, error) {
	var rec frameworkRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "framework not found", goerr.V("id", id))
	}
	return rec.toModel(), nil
}

func (r *frameworkRepository) GetByCode(ctx context.Context, code string) (*model.Framework, error) {
	var rec frameworkRecord
	if err := r.db.WithContext(ctx).First(&rec, "code = ?", code).Error; err != nil {
		return nil, translateError(err, "framework not found", goerr.V("code", code))
	}
	return rec.toModel(), nil
}

func applyFrameworkQuery(tx *gorm.DB, q model.FrameworkQuery) *gorm.DB {
	if q.Search != "" {
		like := likePattern(q.Search)
		tx = tx.Where("code ILIKE ? OR name ILIKE ? OR description ILIKE ?", like, like, like)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", string(q.Type))
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.Owner != "" {
		tx = tx.Where("owner = ?", q.Owner)
	}
	if q.Industry != "" {
		tx = tx.Where("industry = ?", q.Industry)
	}
	if q.Tag != "" {
		tx = tx.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE lower(t.tag) = lower(?))", q.Tag)
	}
	return tx
}

func (r *frameworkRepository) List(ctx context.Context, query model.FrameworkQuery) (*model.FrameworkPage, error) {
	var total int64
	if err := applyFrameworkQuery(r.db.WithContext(ctx).Model(&frameworkRecord{}), query).
		Count(&total).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to count frameworks")
	}

	column, ok := frameworkSortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}

	var records []frameworkRecord
	if err := applyFrameworkQuery(r.db.WithContext(ctx).Model(&frameworkRecord{}), query).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: query.SortOrder != model.SortAsc}).
		Order("id ASC").
		Offset(query.Offset()).
		Limit(query.Limit).
		Find(&records).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list frameworks")
	}

	page := &model.FrameworkPage{
		Items: make([]*model.Framework, 0, len(records)),
		Total: int(total),
		Page:  query.Page,
		Limit: query.Limit,
	}
	for i := range records {
		page.Items = append(page.Items, records[i].toModel())
	}
	return page, nil
}

func (r *frameworkRepository) Update(ctx context.Context, framework *model.Framework) (*model.Framework, error) {
	rec := newFrameworkRecord(framework)
	rec.UpdatedAt = time.Now().UTC()

	omit := append([]string{"id", "created_at", clause.Associations}, progressColumns...)
	result := r.db.WithContext(ctx).
		Model(&frameworkRecord{}).
		Where("id = ?", framework.ID).
		Select("*").
		Omit(omit...).
		Updates(rec)
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to update framework", goerr.V("id", framework.ID))
	}
	if result.RowsAffected == 0 {
		return nil, goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", framework.ID))
	}

	return r.Get(ctx, framework.ID)
}

func (r *frameworkRepository) UpdateProgress(ctx context.Context, id int64, progress model.Progress) error {
	values := progressValues(progress)
	values["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&frameworkRecord{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to update framework progress", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
	}
	return nil
}

func (r *frameworkRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&frameworkRecord{}, "id = ?", id)
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete framework", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "framework not found", goerr.V("id", id))
	}
	return nil
}
