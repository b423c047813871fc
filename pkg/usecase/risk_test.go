package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/model/auth"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/repository/memory"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

func setupCatalog(t *testing.T, repo *memory.Memory, codes ...string) []types.ControlID {
	t.Helper()
	ids := make([]types.ControlID, 0, len(codes))
	for _, code := range codes {
		c, err := repo.Control().Create(context.Background(), &model.Control{
			Code:   code,
			Source: "SCF",
			Name:   code,
			Domain: "IAC",
		})
		gt.NoError(t, err).Required()
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCreateRisk(t *testing.T) {
	repo := memory.New()
	uc := usecase.New(repo)
	ids := setupCatalog(t, repo, "IAC-01", "IAC-02")
	ctx := auth.WithActor(context.Background(), "alice")

	risk, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{
		RiskID:             "R-001",
		Title:              "Data breach",
		InherentLikelihood: types.RiskLevelHigh,
		InherentImpact:     types.RiskLevelCritical,
		ResidualLikelihood: types.RiskLevelLow,
		ResidualImpact:     types.RiskLevelMedium,
		LinkedControls:     []types.ControlID{ids[1], ids[0], ids[1]},
	})
	gt.NoError(t, err).Required()
	gt.Value(t, risk.Creator).Equal("alice")
	gt.Value(t, risk.Treatment).Equal(types.TreatmentMitigate)
	gt.Value(t, risk.InherentScore()).Equal(20)
	gt.Value(t, risk.ResidualScore()).Equal(6)
	gt.Array(t, risk.LinkedControls).Length(2)
	gt.Value(t, risk.LinkedControls).Equal(model.UniqueControlIDs(ids))

	links, err := repo.RiskControl().ListByRisk(ctx, risk.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, links).Length(2)
	gt.Value(t, links[0].CreatedBy).Equal("alice")

	t.Run("round trip", func(t *testing.T) {
		got, err := uc.Risk.GetRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.LinkedControls).Equal(risk.LinkedControls)
		gt.Value(t, got.Title).Equal("Data breach")
	})

	t.Run("empty levels default to medium", func(t *testing.T) {
		got, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{RiskID: "R-002", Title: "t"})
		gt.NoError(t, err).Required()
		gt.Value(t, got.InherentLikelihood).Equal(types.RiskLevelMedium)
		gt.Value(t, got.ResidualImpact).Equal(types.RiskLevelMedium)
		gt.Array(t, got.LinkedControls).Length(0)
	})

	t.Run("duplicate risk id", func(t *testing.T) {
		_, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{RiskID: "R-001", Title: "dup"})
		gt.Error(t, err).Is(usecase.ErrDuplicateKey)
	})

	t.Run("unknown control leaves nothing behind", func(t *testing.T) {
		_, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{
			RiskID:         "R-404",
			Title:          "t",
			LinkedControls: []types.ControlID{types.NewControlID()},
		})
		gt.Error(t, err).Is(usecase.ErrNotFound)

		risks, err := uc.Risk.ListRisks(ctx, model.RiskFilter{Search: "R-404"})
		gt.NoError(t, err).Required()
		gt.Array(t, risks).Length(0)
	})

	t.Run("uppercase control ids link to the same control", func(t *testing.T) {
		upper := types.ControlID(strings.ToUpper(ids[0].String()))
		got, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{
			RiskID:         "R-006",
			Title:          "t",
			LinkedControls: []types.ControlID{upper, ids[0]},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, got.LinkedControls).Equal([]types.ControlID{ids[0]})

		links, err := repo.RiskControl().ListByRisk(ctx, got.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(1)

		risks, err := uc.Risk.ListRisksByControl(ctx, upper)
		gt.NoError(t, err).Required()
		gt.Bool(t, len(risks) >= 1).True()
	})

	t.Run("invalid enums are field errors", func(t *testing.T) {
		_, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{
			RiskID:    "R-005",
			Title:     "t",
			Treatment: types.Treatment("Ignore"),
		})
		gt.Error(t, err).Is(usecase.ErrValidation)

		var verrs model.ValidationErrors
		gt.Bool(t, errors.As(err, &verrs)).True()
		gt.Array(t, verrs).Length(1)
		gt.Value(t, verrs[0].Field).Equal("treatment")
	})
}

func TestUpdateRiskLinks(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)
	ids := setupCatalog(t, repo, "A", "B", "C")

	risk, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{
		RiskID:         "R-1",
		Title:          "t",
		LinkedControls: []types.ControlID{ids[0], ids[1]},
	})
	gt.NoError(t, err).Required()

	t.Run("absent links are untouched", func(t *testing.T) {
		got, err := uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{Title: ptr("renamed")})
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal("renamed")
		gt.Value(t, got.LinkedControls).Equal(risk.LinkedControls)
	})

	t.Run("replace is idempotent", func(t *testing.T) {
		next := []types.ControlID{ids[2], ids[1]}
		first, err := uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{LinkedControls: &next})
		gt.NoError(t, err).Required()
		second, err := uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{LinkedControls: &next})
		gt.NoError(t, err).Required()

		gt.Value(t, first.LinkedControls).Equal(model.UniqueControlIDs(next))
		gt.Value(t, second.LinkedControls).Equal(first.LinkedControls)

		links, err := repo.RiskControl().ListByRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(2)
	})

	t.Run("unknown control keeps previous links", func(t *testing.T) {
		bad := []types.ControlID{ids[0], types.NewControlID()}
		_, err := uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{
			Title:          ptr("should not apply"),
			LinkedControls: &bad,
		})
		gt.Error(t, err).Is(usecase.ErrNotFound)

		got, err := uc.Risk.GetRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal("renamed")
		gt.Array(t, got.LinkedControls).Length(2)
	})

	t.Run("empty list clears", func(t *testing.T) {
		got, err := uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{LinkedControls: &[]types.ControlID{}})
		gt.NoError(t, err).Required()
		gt.Array(t, got.LinkedControls).Length(0)
	})

	t.Run("risk id collision", func(t *testing.T) {
		_, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{RiskID: "R-2", Title: "t"})
		gt.NoError(t, err).Required()
		_, err = uc.Risk.UpdateRisk(ctx, risk.ID, usecase.RiskUpdate{RiskID: ptr("R-2")})
		gt.Error(t, err).Is(usecase.ErrDuplicateKey)
	})

	t.Run("missing risk", func(t *testing.T) {
		_, err := uc.Risk.UpdateRisk(ctx, 999, usecase.RiskUpdate{Title: ptr("x")})
		gt.Error(t, err).Is(usecase.ErrNotFound)
	})
}

func TestDeleteRiskCascades(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)
	ids := setupCatalog(t, repo, "A")

	risk, err := uc.Risk.CreateRisk(ctx, usecase.RiskInput{RiskID: "R-1", Title: "t", LinkedControls: ids})
	gt.NoError(t, err).Required()

	gt.NoError(t, uc.Risk.DeleteRisk(ctx, risk.ID)).Required()

	links, err := repo.RiskControl().ListByRisk(ctx, risk.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, links).Length(0)

	_, err = uc.Risk.GetRisk(ctx, risk.ID)
	gt.Error(t, err).Is(usecase.ErrNotFound)
	gt.Error(t, uc.Risk.DeleteRisk(ctx, risk.ID)).Is(usecase.ErrNotFound)
}

func TestListRisks(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)
	ids := setupCatalog(t, repo, "A", "B")

	inputs := []usecase.RiskInput{
		{RiskID: "R-1", Title: "Phishing", BusinessUnit: "IT", Treatment: types.TreatmentMitigate, LinkedControls: ids},
		{RiskID: "R-2", Title: "Vendor outage", BusinessUnit: "Ops", Treatment: types.TreatmentTransfer, LinkedControls: ids[:1]},
		{RiskID: "R-3", Title: "Insider", Description: "phishing-assisted", BusinessUnit: "IT", Treatment: types.TreatmentAccept},
	}
	for _, in := range inputs {
		_, err := uc.Risk.CreateRisk(ctx, in)
		gt.NoError(t, err).Required()
	}

	all, err := uc.Risk.ListRisks(ctx, model.RiskFilter{})
	gt.NoError(t, err).Required()
	gt.Array(t, all).Length(3)
	gt.Array(t, all[0].LinkedControls).Length(2)
	gt.Array(t, all[2].LinkedControls).Length(0)

	got, err := uc.Risk.ListRisks(ctx, model.RiskFilter{Search: "PHISHING"})
	gt.NoError(t, err).Required()
	gt.Array(t, got).Length(2)

	got, err = uc.Risk.ListRisks(ctx, model.RiskFilter{BusinessUnit: "IT", Treatment: types.TreatmentAccept})
	gt.NoError(t, err).Required()
	gt.Array(t, got).Length(1)
	gt.Value(t, got[0].RiskID).Equal("R-3")

	t.Run("by control", func(t *testing.T) {
		risks, err := uc.Risk.ListRisksByControl(ctx, ids[0])
		gt.NoError(t, err).Required()
		gt.Array(t, risks).Length(2)

		risks, err = uc.Risk.ListRisksByControl(ctx, ids[1])
		gt.NoError(t, err).Required()
		gt.Array(t, risks).Length(1)
		gt.Value(t, risks[0].RiskID).Equal("R-1")

		_, err = uc.Risk.ListRisksByControl(ctx, types.NewControlID())
		gt.Error(t, err).Is(usecase.ErrNotFound)
	})
}
