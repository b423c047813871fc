package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// FrameworkControlInput carries the attributes of a new framework control
type FrameworkControlInput struct {
	FrameworkID            *int64
	RequirementID          string
	Title                  string
	Description            string
	ImplementationStatus   types.ImplementationStatus
	Priority               types.Priority
	Domain                 string
	Category               string
	Evidence               string
	TestingProcedure       string
	ImplementationGuidance string
}

// FrameworkAssignment moves a control to FrameworkID, or unassigns it when FrameworkID is nil
type FrameworkAssignment struct {
	FrameworkID *int64
}

// FrameworkControlUpdate is a partial update. A nil Assignment leaves the framework unchanged.
type FrameworkControlUpdate struct {
	Assignment             *FrameworkAssignment
	RequirementID          *string
	Title                  *string
	Description            *string
	ImplementationStatus   *types.ImplementationStatus
	Priority               *types.Priority
	Domain                 *string
	Category               *string
	Evidence               *string
	TestingProcedure       *string
	ImplementationGuidance *string
}

type FrameworkControlUseCase struct {
	repo interfaces.Repository
}

func NewFrameworkControlUseCase(repo interfaces.Repository) *FrameworkControlUseCase {
	return &FrameworkControlUseCase{
		repo: repo,
	}
}

func (uc *FrameworkControlUseCase) ensureFramework(ctx context.Context, frameworkID *int64) error {
	if frameworkID == nil {
		return nil
	}
	if _, err := uc.repo.Framework().Get(ctx, *frameworkID); err != nil {
		return goerr.Wrap(err, "target framework not found", goerr.V(FrameworkIDKey, *frameworkID))
	}
	return nil
}

func (uc *FrameworkControlUseCase) ListControls(ctx context.Context) ([]*model.FrameworkControl, error) {
	controls, err := uc.repo.FrameworkControl().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list framework controls")
	}
	return controls, nil
}

func (uc *FrameworkControlUseCase) GetControl(ctx context.Context, id int64) (*model.FrameworkControl, error) {
	control, err := uc.repo.FrameworkControl().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get framework control", goerr.V(FrameworkControlIDKey, id))
	}
	return control, nil
}

func (uc *FrameworkControlUseCase) CreateControl(ctx context.Context, input FrameworkControlInput) (*model.FrameworkControl, error) {
	control := &model.FrameworkControl{
		FrameworkID:            input.FrameworkID,
		RequirementID:          input.RequirementID,
		Title:                  input.Title,
		Description:            input.Description,
		ImplementationStatus:   input.ImplementationStatus.Normalize(),
		Priority:               input.Priority.Normalize(),
		Domain:                 input.Domain,
		Category:               input.Category,
		Evidence:               input.Evidence,
		TestingProcedure:       input.TestingProcedure,
		ImplementationGuidance: input.ImplementationGuidance,
	}
	if err := control.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid framework control")
	}
	if err := uc.ensureFramework(ctx, control.FrameworkID); err != nil {
		return nil, err
	}

	created, err := uc.repo.FrameworkControl().Create(ctx, control)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create framework control")
	}

	if err := recalculateAll(ctx, uc.repo, created.FrameworkID); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateControl applies a partial update. When the framework changes, the old framework is
// recalculated before the new one; otherwise the current framework is recalculated once.
func (uc *FrameworkControlUseCase) UpdateControl(ctx context.Context, id int64, update FrameworkControlUpdate) (*model.FrameworkControl, error) {
	existing, err := uc.repo.FrameworkControl().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing framework control", goerr.V(FrameworkControlIDKey, id))
	}

	control := existing.Copy()
	if update.Assignment != nil {
		control.FrameworkID = update.Assignment.FrameworkID
	}
	if update.RequirementID != nil {
		control.RequirementID = *update.RequirementID
	}
	if update.Title != nil {
		control.Title = *update.Title
	}
	if update.Description != nil {
		control.Description = *update.Description
	}
	if update.ImplementationStatus != nil {
		control.ImplementationStatus = *update.ImplementationStatus
	}
	if update.Priority != nil {
		control.Priority = *update.Priority
	}
	if update.Domain != nil {
		control.Domain = *update.Domain
	}
	if update.Category != nil {
		control.Category = *update.Category
	}
	if update.Evidence != nil {
		control.Evidence = *update.Evidence
	}
	if update.TestingProcedure != nil {
		control.TestingProcedure = *update.TestingProcedure
	}
	if update.ImplementationGuidance != nil {
		control.ImplementationGuidance = *update.ImplementationGuidance
	}

	if err := control.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid framework control", goerr.V(FrameworkControlIDKey, id))
	}

	moved := !model.SameFramework(existing.FrameworkID, control.FrameworkID)
	if moved {
		if err := uc.ensureFramework(ctx, control.FrameworkID); err != nil {
			return nil, err
		}
	}

	updated, err := uc.repo.FrameworkControl().Update(ctx, control)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update framework control", goerr.V(FrameworkControlIDKey, id))
	}

	if moved {
		err = recalculateAll(ctx, uc.repo, existing.FrameworkID, updated.FrameworkID)
	} else {
		err = recalculateAll(ctx, uc.repo, updated.FrameworkID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (uc *FrameworkControlUseCase) DeleteControl(ctx context.Context, id int64) error {
	existing, err := uc.repo.FrameworkControl().Get(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get framework control", goerr.V(FrameworkControlIDKey, id))
	}

	if err := uc.repo.FrameworkControl().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete framework control", goerr.V(FrameworkControlIDKey, id))
	}

	return recalculateAll(ctx, uc.repo, existing.FrameworkID)
}
