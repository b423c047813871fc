package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

// ControlUpdate is a partial update of a catalog control; nil fields are left unchanged
type ControlUpdate struct {
	Code        *string
	Source      *string
	Name        *string
	Description *string
	Domain      *string
	Mappings    *[]model.ControlMapping
}

// ImportResult counts the outcome of a catalog import
type ImportResult struct {
	Created int
	Updated int
}

type CatalogUseCase struct {
	repo interfaces.Repository
}

func NewCatalogUseCase(repo interfaces.Repository) *CatalogUseCase {
	return &CatalogUseCase{
		repo: repo,
	}
}

func (uc *CatalogUseCase) ListControls(ctx context.Context, filter model.ControlFilter) ([]*model.Control, error) {
	controls, err := uc.repo.Control().List(ctx, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list controls")
	}
	return controls, nil
}

func (uc *CatalogUseCase) GetControl(ctx context.Context, id types.ControlID) (*model.Control, error) {
	id = id.Canonical()
	control, err := uc.repo.Control().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(ControlIDKey, id))
	}
	return control, nil
}

func (uc *CatalogUseCase) GetControlByCode(ctx context.Context, code string) (*model.Control, error) {
	control, err := uc.repo.Control().GetByCode(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V("code", code))
	}
	return control, nil
}

func (uc *CatalogUseCase) UpdateControl(ctx context.Context, id types.ControlID, update ControlUpdate) (*model.Control, error) {
	id = id.Canonical()
	existing, err := uc.repo.Control().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing control", goerr.V(ControlIDKey, id))
	}

	control := existing.Copy()
	if update.Code != nil {
		control.Code = *update.Code
	}
	if update.Source != nil {
		control.Source = *update.Source
	}
	if update.Name != nil {
		control.Name = *update.Name
	}
	if update.Description != nil {
		control.Description = *update.Description
	}
	if update.Domain != nil {
		control.Domain = *update.Domain
	}
	if update.Mappings != nil {
		control.Mappings = *update.Mappings
	}

	if err := control.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid control", goerr.V(ControlIDKey, id))
	}

	updated, err := uc.repo.Control().Update(ctx, control)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update control", goerr.V(ControlIDKey, id))
	}
	return updated, nil
}

func (uc *CatalogUseCase) CountControls(ctx context.Context) (int, error) {
	count, err := uc.repo.Control().Count(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count controls")
	}
	return count, nil
}

// Summary returns the catalog size with per-source and per-domain counts
func (uc *CatalogUseCase) Summary(ctx context.Context) (*model.CatalogSummary, error) {
	controls, err := uc.repo.Control().List(ctx, model.ControlFilter{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list controls")
	}
	return model.BuildCatalogSummary(controls), nil
}

// ImportControls upserts catalog entries keyed by business code. Existing entries keep their ID.
func (uc *CatalogUseCase) ImportControls(ctx context.Context, controls []*model.Control) (*ImportResult, error) {
	var errs model.ValidationErrors
	for _, c := range controls {
		if err := c.Validate(); err != nil {
			var ve model.ValidationErrors
			if errors.As(err, &ve) {
				for _, fe := range ve {
					errs.Add(c.Code+"."+fe.Field, fe.Message)
				}
			}
		}
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, goerr.Wrap(err, "invalid catalog entries")
	}

	result := &ImportResult{}
	for _, c := range controls {
		existing, err := uc.repo.Control().GetByCode(ctx, c.Code)
		switch {
		case err == nil:
			updated := c.Copy()
			updated.ID = existing.ID
			if _, err := uc.repo.Control().Update(ctx, updated); err != nil {
				return result, goerr.Wrap(err, "failed to update control", goerr.V("code", c.Code))
			}
			result.Updated++

		case errors.Is(err, ErrNotFound):
			created := c.Copy()
			created.ID = created.ID.Canonical()
			if _, err := uc.repo.Control().Create(ctx, created); err != nil {
				return result, goerr.Wrap(err, "failed to create control", goerr.V("code", c.Code))
			}
			result.Created++

		default:
			return result, goerr.Wrap(err, "failed to look up control", goerr.V("code", c.Code))
		}
	}

	logging.From(ctx).Info("catalog imported",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
	)
	return result, nil
}
