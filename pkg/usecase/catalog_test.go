package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/repository/memory"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	uc := usecase.New(memory.New())

	result, err := uc.Catalog.ImportControls(ctx, []*model.Control{
		{Code: "IAC-01", Source: "SCF", Name: "Identity management", Description: "Manage identities", Domain: "IAC"},
		{Code: "IAC-02", Source: "SCF", Name: "Authentication", Description: "Strong identity proofing", Domain: "IAC"},
		{Code: "CIS-4.1", Source: "CIS", Name: "Secure configuration", Description: "Baseline", Domain: "CFG"},
	})
	gt.NoError(t, err).Required()
	gt.Value(t, result.Created).Equal(3)
	gt.Value(t, result.Updated).Equal(0)

	t.Run("search matches name or description", func(t *testing.T) {
		got, err := uc.Catalog.ListControls(ctx, model.ControlFilter{Search: "IDENTITY"})
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(2)
		gt.Value(t, got[0].Code).Equal("IAC-01")

		got, err = uc.Catalog.ListControls(ctx, model.ControlFilter{Search: "identity", Source: "CIS"})
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(0)

		got, err = uc.Catalog.ListControls(ctx, model.ControlFilter{Domain: "CFG"})
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(1)
	})

	t.Run("summary", func(t *testing.T) {
		summary, err := uc.Catalog.Summary(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, summary.Total).Equal(3)
		gt.Value(t, summary.BySource["SCF"]).Equal(2)
		gt.Value(t, summary.ByDomain["CFG"]).Equal(1)

		count, err := uc.Catalog.CountControls(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(3)
	})

	t.Run("update", func(t *testing.T) {
		c, err := uc.Catalog.GetControlByCode(ctx, "IAC-01")
		gt.NoError(t, err).Required()

		got, err := uc.Catalog.UpdateControl(ctx, c.ID, usecase.ControlUpdate{Name: ptr("Identity lifecycle")})
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("Identity lifecycle")
		gt.Value(t, got.Source).Equal("SCF")

		_, err = uc.Catalog.UpdateControl(ctx, c.ID, usecase.ControlUpdate{Code: ptr("IAC-02")})
		gt.Error(t, err).Is(usecase.ErrDuplicateKey)

		_, err = uc.Catalog.GetControlByCode(ctx, "NOPE")
		gt.Error(t, err).Is(usecase.ErrNotFound)
	})

	t.Run("reimport updates by code", func(t *testing.T) {
		before, err := uc.Catalog.GetControlByCode(ctx, "CIS-4.1")
		gt.NoError(t, err).Required()

		result, err := uc.Catalog.ImportControls(ctx, []*model.Control{
			{Code: "CIS-4.1", Source: "CIS", Name: "Secure configuration v8", Domain: "CFG",
				Mappings: []model.ControlMapping{{Standard: "NIST 800-53", Reference: "CM-6"}}},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Updated).Equal(1)

		after, err := uc.Catalog.GetControl(ctx, before.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, after.Name).Equal("Secure configuration v8")
		gt.Array(t, after.Mappings).Length(1)
	})

	t.Run("invalid entries abort the import", func(t *testing.T) {
		_, err := uc.Catalog.ImportControls(ctx, []*model.Control{
			{Code: "NEW-1", Source: "SCF", Name: "ok"},
			{Code: "NEW-2", Source: "SCF"},
		})
		gt.Error(t, err).Is(usecase.ErrValidation)

		_, err = uc.Catalog.GetControlByCode(ctx, "NEW-1")
		gt.Error(t, err).Is(usecase.ErrNotFound)
	})
}

func TestReadOnlyAuthorizer(t *testing.T) {
	ctx := context.Background()
	authz := &usecase.ReadOnlyAuthorizer{}

	gt.NoError(t, authz.Authorize(ctx, "alice", "read", "risks"))
	gt.Error(t, authz.Authorize(ctx, "alice", "write", "risks")).Is(usecase.ErrForbidden)
	gt.Error(t, authz.Authorize(ctx, "alice", "delete", "frameworks")).Is(usecase.ErrForbidden)
	gt.NoError(t, (&usecase.AllowAllAuthorizer{}).Authorize(ctx, "bob", "delete", "risks"))
}
