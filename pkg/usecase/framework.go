package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// FrameworkInput carries the attributes of a new framework
type FrameworkInput struct {
	Code          string
	Name          string
	Description   string
	Type          types.FrameworkType
	Status        types.FrameworkStatus
	Version       string
	Publisher     string
	EffectiveDate *time.Time
	ReviewDate    *time.Time
	Owner         string
	Industry      string
	Tags          []string
	CustomFields  map[string]any
}

// DateUpdate sets a date, or clears it when Value is nil
type DateUpdate struct {
	Value *time.Time
}

// FrameworkUpdate is a partial update; nil fields are left unchanged
type FrameworkUpdate struct {
	Code          *string
	Name          *string
	Description   *string
	Type          *types.FrameworkType
	Status        *types.FrameworkStatus
	Version       *string
	Publisher     *string
	EffectiveDate *DateUpdate
	ReviewDate    *DateUpdate
	Owner         *string
	Industry      *string
	Tags          *[]string
	CustomFields  *map[string]any
}

type FrameworkUseCase struct {
	repo interfaces.Repository
}

func NewFrameworkUseCase(repo interfaces.Repository) *FrameworkUseCase {
	return &FrameworkUseCase{
		repo: repo,
	}
}

func (uc *FrameworkUseCase) CreateFramework(ctx context.Context, input FrameworkInput) (*model.Framework, error) {
	framework := &model.Framework{
		Code:          input.Code,
		Name:          input.Name,
		Description:   input.Description,
		Type:          input.Type,
		Status:        input.Status.Normalize(),
		Version:       input.Version,
		Publisher:     input.Publisher,
		EffectiveDate: input.EffectiveDate,
		ReviewDate:    input.ReviewDate,
		Owner:         input.Owner,
		Industry:      input.Industry,
		Tags:          input.Tags,
		CustomFields:  input.CustomFields,
	}
	if framework.Tags == nil {
		framework.Tags = []string{}
	}

	if err := framework.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid framework")
	}

	created, err := uc.repo.Framework().Create(ctx, framework)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create framework", goerr.V("code", input.Code))
	}
	return created, nil
}

func (uc *FrameworkUseCase) GetFramework(ctx context.Context, id int64) (*model.Framework, error) {
	framework, err := uc.repo.Framework().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, id))
	}
	return framework, nil
}

func (uc *FrameworkUseCase) GetFrameworkByCode(ctx context.Context, code string) (*model.Framework, error) {
	framework, err := uc.repo.Framework().GetByCode(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V("code", code))
	}
	return framework, nil
}

func (uc *FrameworkUseCase) ListFrameworks(ctx context.Context, query model.FrameworkQuery) (*model.FrameworkPage, error) {
	normalized, err := query.Normalize()
	if err != nil {
		return nil, err
	}

	page, err := uc.repo.Framework().List(ctx, normalized)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list frameworks")
	}
	return page, nil
}

func (uc *FrameworkUseCase) UpdateFramework(ctx context.Context, id int64, update FrameworkUpdate) (*model.Framework, error) {
	existing, err := uc.repo.Framework().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing framework", goerr.V(FrameworkIDKey, id))
	}

	framework := existing.Copy()
	if update.Code != nil {
		framework.Code = *update.Code
	}
	if update.Name != nil {
		framework.Name = *update.Name
	}
	if update.Description != nil {
		framework.Description = *update.Description
	}
	if update.Type != nil {
		framework.Type = *update.Type
	}
	if update.Status != nil {
		framework.Status = *update.Status
	}
	if update.Version != nil {
		framework.Version = *update.Version
	}
	if update.Publisher != nil {
		framework.Publisher = *update.Publisher
	}
	if update.EffectiveDate != nil {
		framework.EffectiveDate = update.EffectiveDate.Value
	}
	if update.ReviewDate != nil {
		framework.ReviewDate = update.ReviewDate.Value
	}
	if update.Owner != nil {
		framework.Owner = *update.Owner
	}
	if update.Industry != nil {
		framework.Industry = *update.Industry
	}
	if update.Tags != nil {
		framework.Tags = *update.Tags
	}
	if update.CustomFields != nil {
		framework.CustomFields = *update.CustomFields
	}

	if err := framework.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid framework", goerr.V(FrameworkIDKey, id))
	}

	updated, err := uc.repo.Framework().Update(ctx, framework)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update framework", goerr.V(FrameworkIDKey, id))
	}
	return updated, nil
}

// DeleteFramework unassigns every control of the framework, then deletes it
func (uc *FrameworkUseCase) DeleteFramework(ctx context.Context, id int64) error {
	if _, err := uc.repo.Framework().Get(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, id))
	}

	if err := uc.repo.FrameworkControl().UnassignFramework(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to unassign framework controls", goerr.V(FrameworkIDKey, id))
	}

	if err := uc.repo.Framework().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete framework", goerr.V(FrameworkIDKey, id))
	}
	return nil
}

// ListControls returns the controls assigned to a framework, optionally limited to one domain
func (uc *FrameworkUseCase) ListControls(ctx context.Context, frameworkID int64, domain string) ([]*model.FrameworkControl, error) {
	if _, err := uc.repo.Framework().Get(ctx, frameworkID); err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, frameworkID))
	}

	controls, err := uc.repo.FrameworkControl().ListByFramework(ctx, frameworkID, domain)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list framework controls", goerr.V(FrameworkIDKey, frameworkID))
	}
	return controls, nil
}

func (uc *FrameworkUseCase) loadControls(ctx context.Context, controlIDs []int64) ([]*model.FrameworkControl, error) {
	seen := make(map[int64]struct{}, len(controlIDs))
	controls := make([]*model.FrameworkControl, 0, len(controlIDs))
	for _, id := range controlIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		control, err := uc.repo.FrameworkControl().Get(ctx, id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get framework control", goerr.V(FrameworkControlIDKey, id))
		}
		controls = append(controls, control)
	}
	return controls, nil
}

// AddControls assigns existing framework controls to frameworkID. Frameworks the controls
// were moved out of are recalculated before the target.
func (uc *FrameworkUseCase) AddControls(ctx context.Context, frameworkID int64, controlIDs []int64) (*model.Framework, error) {
	if _, err := uc.repo.Framework().Get(ctx, frameworkID); err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, frameworkID))
	}

	controls, err := uc.loadControls(ctx, controlIDs)
	if err != nil {
		return nil, err
	}

	affected := make([]*int64, 0, len(controls)+1)
	for _, control := range controls {
		if control.InFramework(frameworkID) {
			continue
		}
		affected = append(affected, control.FrameworkID)

		target := frameworkID
		control.FrameworkID = &target
		if _, err := uc.repo.FrameworkControl().Update(ctx, control); err != nil {
			return nil, goerr.Wrap(err, "failed to assign framework control",
				goerr.V(FrameworkControlIDKey, control.ID),
				goerr.V(FrameworkIDKey, frameworkID))
		}
	}
	affected = append(affected, &frameworkID)

	if err := recalculateAll(ctx, uc.repo, affected...); err != nil {
		return nil, err
	}
	return uc.GetFramework(ctx, frameworkID)
}

// RemoveControls unassigns controls from frameworkID. Controls assigned elsewhere are left alone.
func (uc *FrameworkUseCase) RemoveControls(ctx context.Context, frameworkID int64, controlIDs []int64) (*model.Framework, error) {
	if _, err := uc.repo.Framework().Get(ctx, frameworkID); err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, frameworkID))
	}

	controls, err := uc.loadControls(ctx, controlIDs)
	if err != nil {
		return nil, err
	}

	for _, control := range controls {
		if !control.InFramework(frameworkID) {
			continue
		}
		control.FrameworkID = nil
		if _, err := uc.repo.FrameworkControl().Update(ctx, control); err != nil {
			return nil, goerr.Wrap(err, "failed to unassign framework control",
				goerr.V(FrameworkControlIDKey, control.ID),
				goerr.V(FrameworkIDKey, frameworkID))
		}
	}

	if _, err := recalculateProgress(ctx, uc.repo, frameworkID); err != nil {
		return nil, err
	}
	return uc.GetFramework(ctx, frameworkID)
}

// RecalculateProgress recomputes the rollup counters on demand
func (uc *FrameworkUseCase) RecalculateProgress(ctx context.Context, frameworkID int64) (*model.Framework, error) {
	if _, err := uc.repo.Framework().Get(ctx, frameworkID); err != nil {
		return nil, goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, frameworkID))
	}
	if _, err := recalculateProgress(ctx, uc.repo, frameworkID); err != nil {
		return nil, err
	}
	return uc.GetFramework(ctx, frameworkID)
}

// RiskReport summarizes implementation gaps of a framework. The framework and its controls
// are loaded concurrently; progress in the report is computed from the loaded controls.
func (uc *FrameworkUseCase) RiskReport(ctx context.Context, frameworkID int64) (*model.FrameworkRiskReport, error) {
	var (
		framework *model.Framework
		controls  []*model.FrameworkControl
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		f, err := uc.repo.Framework().Get(egCtx, frameworkID)
		if err != nil {
			return goerr.Wrap(err, "failed to get framework", goerr.V(FrameworkIDKey, frameworkID))
		}
		framework = f
		return nil
	})
	eg.Go(func() error {
		c, err := uc.repo.FrameworkControl().ListByFramework(egCtx, frameworkID, "")
		if err != nil {
			return goerr.Wrap(err, "failed to list framework controls", goerr.V(FrameworkIDKey, frameworkID))
		}
		controls = c
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	framework.Progress = model.ComputeProgress(controls)
	return model.BuildRiskReport(framework, controls), nil
}
