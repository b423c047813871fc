package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/model/auth"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// RiskInput carries the attributes of a new risk
type RiskInput struct {
	RiskID             string
	Title              string
	Description        string
	InherentLikelihood types.RiskLevel
	InherentImpact     types.RiskLevel
	ResidualLikelihood types.RiskLevel
	ResidualImpact     types.RiskLevel
	Treatment          types.Treatment
	Threats            string
	Assets             string
	BusinessUnit       string
	RiskOwner          string
	Creator            string
	LinkedControls     []types.ControlID
}

// RiskUpdate is a partial update. A nil LinkedControls leaves links untouched;
// a non-nil one (even empty) replaces the whole link set.
type RiskUpdate struct {
	RiskID             *string
	Title              *string
	Description        *string
	InherentLikelihood *types.RiskLevel
	InherentImpact     *types.RiskLevel
	ResidualLikelihood *types.RiskLevel
	ResidualImpact     *types.RiskLevel
	Treatment          *types.Treatment
	Threats            *string
	Assets             *string
	BusinessUnit       *string
	RiskOwner          *string
	LinkedControls     *[]types.ControlID
}

type RiskUseCase struct {
	repo interfaces.Repository
}

func NewRiskUseCase(repo interfaces.Repository) *RiskUseCase {
	return &RiskUseCase{
		repo: repo,
	}
}

// ensureControls fails with ErrNotFound if any ID is not in the catalog
func (uc *RiskUseCase) ensureControls(ctx context.Context, ids []types.ControlID) error {
	for _, id := range ids {
		if _, err := uc.repo.Control().Get(ctx, id); err != nil {
			return goerr.Wrap(err, "linked control not found", goerr.V(ControlIDKey, id))
		}
	}
	return nil
}

func linkedControls(links []*model.RiskControl) []types.ControlID {
	ids := make([]types.ControlID, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ControlID)
	}
	return model.UniqueControlIDs(ids)
}

func (uc *RiskUseCase) CreateRisk(ctx context.Context, input RiskInput) (*model.Risk, error) {
	actor := auth.ActorFromContext(ctx)

	risk := &model.Risk{
		RiskID:             input.RiskID,
		Title:              input.Title,
		Description:        input.Description,
		InherentLikelihood: input.InherentLikelihood.Normalize(),
		InherentImpact:     input.InherentImpact.Normalize(),
		ResidualLikelihood: input.ResidualLikelihood.Normalize(),
		ResidualImpact:     input.ResidualImpact.Normalize(),
		Treatment:          input.Treatment.Normalize(),
		Threats:            input.Threats,
		Assets:             input.Assets,
		BusinessUnit:       input.BusinessUnit,
		RiskOwner:          input.RiskOwner,
		Creator:            input.Creator,
		LinkedControls:     input.LinkedControls,
	}
	if risk.Creator == "" {
		risk.Creator = actor
	}

	if err := risk.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid risk")
	}

	controlIDs := model.UniqueControlIDs(input.LinkedControls)
	if err := uc.ensureControls(ctx, controlIDs); err != nil {
		return nil, err
	}

	created, err := uc.repo.Risk().Create(ctx, risk)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create risk", goerr.V("riskID", input.RiskID))
	}

	if len(controlIDs) > 0 {
		if err := uc.repo.RiskControl().Replace(ctx, created.ID, controlIDs, actor); err != nil {
			// Rollback: delete the created risk to maintain atomicity
			if delErr := uc.repo.Risk().Delete(ctx, created.ID); delErr != nil {
				return nil, goerr.Wrap(err, "failed to link controls and rollback failed",
					goerr.V(RiskIDKey, created.ID),
					goerr.V("rollbackError", delErr))
			}
			return nil, goerr.Wrap(err, "failed to link controls, risk creation rolled back",
				goerr.V(RiskIDKey, created.ID))
		}
	}

	return uc.GetRisk(ctx, created.ID)
}

func (uc *RiskUseCase) GetRisk(ctx context.Context, id int64) (*model.Risk, error) {
	risk, err := uc.repo.Risk().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(RiskIDKey, id))
	}

	links, err := uc.repo.RiskControl().ListByRisk(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get linked controls", goerr.V(RiskIDKey, id))
	}
	risk.LinkedControls = linkedControls(links)

	return risk, nil
}

// ListRisks returns matching risks with link sets loaded in one batch
func (uc *RiskUseCase) ListRisks(ctx context.Context, filter model.RiskFilter) ([]*model.Risk, error) {
	risks, err := uc.repo.Risk().List(ctx, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}
	return uc.attachLinks(ctx, risks)
}

func (uc *RiskUseCase) attachLinks(ctx context.Context, risks []*model.Risk) ([]*model.Risk, error) {
	if len(risks) == 0 {
		return risks, nil
	}

	ids := make([]int64, 0, len(risks))
	for _, risk := range risks {
		ids = append(ids, risk.ID)
	}

	links, err := uc.repo.RiskControl().ListByRisks(ctx, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get linked controls")
	}
	for _, risk := range risks {
		risk.LinkedControls = linkedControls(links[risk.ID])
	}
	return risks, nil
}

func (uc *RiskUseCase) UpdateRisk(ctx context.Context, id int64, update RiskUpdate) (*model.Risk, error) {
	existing, err := uc.repo.Risk().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing risk", goerr.V(RiskIDKey, id))
	}

	risk := existing.Copy()
	if update.RiskID != nil {
		risk.RiskID = *update.RiskID
	}
	if update.Title != nil {
		risk.Title = *update.Title
	}
	if update.Description != nil {
		risk.Description = *update.Description
	}
	if update.InherentLikelihood != nil {
		risk.InherentLikelihood = *update.InherentLikelihood
	}
	if update.InherentImpact != nil {
		risk.InherentImpact = *update.InherentImpact
	}
	if update.ResidualLikelihood != nil {
		risk.ResidualLikelihood = *update.ResidualLikelihood
	}
	if update.ResidualImpact != nil {
		risk.ResidualImpact = *update.ResidualImpact
	}
	if update.Treatment != nil {
		risk.Treatment = *update.Treatment
	}
	if update.Threats != nil {
		risk.Threats = *update.Threats
	}
	if update.Assets != nil {
		risk.Assets = *update.Assets
	}
	if update.BusinessUnit != nil {
		risk.BusinessUnit = *update.BusinessUnit
	}
	if update.RiskOwner != nil {
		risk.RiskOwner = *update.RiskOwner
	}

	var controlIDs []types.ControlID
	if update.LinkedControls != nil {
		risk.LinkedControls = *update.LinkedControls
		controlIDs = model.UniqueControlIDs(*update.LinkedControls)
	}

	if err := risk.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid risk", goerr.V(RiskIDKey, id))
	}
	if err := uc.ensureControls(ctx, controlIDs); err != nil {
		return nil, err
	}

	if _, err := uc.repo.Risk().Update(ctx, risk); err != nil {
		return nil, goerr.Wrap(err, "failed to update risk", goerr.V(RiskIDKey, id))
	}

	if update.LinkedControls != nil {
		if err := uc.repo.RiskControl().Replace(ctx, id, controlIDs, auth.ActorFromContext(ctx)); err != nil {
			return nil, goerr.Wrap(err, "failed to replace linked controls", goerr.V(RiskIDKey, id))
		}
	}

	return uc.GetRisk(ctx, id)
}

// DeleteRisk removes the risk's links, then the risk
func (uc *RiskUseCase) DeleteRisk(ctx context.Context, id int64) error {
	if _, err := uc.repo.Risk().Get(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to get risk", goerr.V(RiskIDKey, id))
	}

	if err := uc.repo.RiskControl().DeleteByRisk(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete linked controls", goerr.V(RiskIDKey, id))
	}

	if err := uc.repo.Risk().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete risk", goerr.V(RiskIDKey, id))
	}
	return nil
}

// ListRisksByControl returns every risk linking the catalog control
func (uc *RiskUseCase) ListRisksByControl(ctx context.Context, controlID types.ControlID) ([]*model.Risk, error) {
	controlID = controlID.Canonical()
	if _, err := uc.repo.Control().Get(ctx, controlID); err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(ControlIDKey, controlID))
	}

	riskIDs, err := uc.repo.RiskControl().ListRiskIDsByControl(ctx, controlID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks by control", goerr.V(ControlIDKey, controlID))
	}

	risks := make([]*model.Risk, 0, len(riskIDs))
	for _, id := range riskIDs {
		risk, err := uc.repo.Risk().Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Skip if risk was deleted
				continue
			}
			return nil, goerr.Wrap(err, "failed to get risk", goerr.V(RiskIDKey, id))
		}
		risks = append(risks, risk)
	}
	return uc.attachLinks(ctx, risks)
}
