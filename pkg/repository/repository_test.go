package repository_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/repository/firestore"
	"github.com/secmon-lab/grcops/pkg/repository/memory"
	"github.com/secmon-lab/grcops/pkg/repository/postgres"
)

// token returns a per-test unique string so shared databases do not collide
func token() string {
	return uuid.NewString()[:8]
}

func newControl(t *testing.T, repo interfaces.Repository, code, domain string) *model.Control {
	t.Helper()
	created, err := repo.Control().Create(context.Background(), &model.Control{
		Code:        code,
		Source:      "SCF",
		Name:        "Control " + code,
		Description: "Description of " + code,
		Domain:      domain,
		Mappings: []model.ControlMapping{
			{Standard: "ISO27001", Reference: "A.5.1"},
		},
	})
	gt.NoError(t, err).Required()
	return created
}

func newFrameworkControl(t *testing.T, repo interfaces.Repository, frameworkID *int64, domain string, status types.ImplementationStatus) *model.FrameworkControl {
	t.Helper()
	created, err := repo.FrameworkControl().Create(context.Background(), &model.FrameworkControl{
		FrameworkID:          frameworkID,
		RequirementID:        "REQ-" + token(),
		Title:                "Requirement",
		ImplementationStatus: status,
		Priority:             types.PriorityHigh,
		Domain:               domain,
	})
	gt.NoError(t, err).Required()
	return created
}

func runRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("framework create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		code := "SOC2-" + token()
		effective := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

		created, err := repo.Framework().Create(ctx, &model.Framework{
			Code:          code,
			Name:          "SOC 2",
			Type:          types.FrameworkTypeCompliance,
			Status:        types.FrameworkStatusDraft,
			EffectiveDate: &effective,
			Tags:          []string{"audit", "cloud"},
			CustomFields:  map[string]any{"auditor": "acme"},
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, created.ID > 0).True()
		gt.Bool(t, created.CreatedAt.IsZero()).False()

		got, err := repo.Framework().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Code).Equal(code)
		gt.Value(t, got.Type).Equal(types.FrameworkTypeCompliance)
		gt.Array(t, got.Tags).Length(2)
		gt.Value(t, got.CustomFields["auditor"]).Equal(any("acme"))
		gt.Value(t, got.EffectiveDate).NotNil()
		gt.Bool(t, got.EffectiveDate.Equal(effective)).True()

		byCode, err := repo.Framework().GetByCode(ctx, code)
		gt.NoError(t, err).Required()
		gt.Value(t, byCode.ID).Equal(created.ID)
	})

	t.Run("framework code is unique", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		code := "ISO-" + token()

		_, err := repo.Framework().Create(ctx, &model.Framework{Code: code, Name: "ISO", Type: types.FrameworkTypeSecurity, Status: types.FrameworkStatusDraft})
		gt.NoError(t, err).Required()

		_, err = repo.Framework().Create(ctx, &model.Framework{Code: code, Name: "ISO again", Type: types.FrameworkTypeSecurity, Status: types.FrameworkStatusDraft})
		gt.Error(t, err).Is(interfaces.ErrDuplicateKey)
	})

	t.Run("framework get missing returns not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Framework().Get(ctx, 987654321)
		gt.Error(t, err).Is(interfaces.ErrNotFound)

		_, err = repo.Framework().GetByCode(ctx, "missing-"+token())
		gt.Error(t, err).Is(interfaces.ErrNotFound)

		gt.Error(t, repo.Framework().Delete(ctx, 987654321)).Is(interfaces.ErrNotFound)
	})

	t.Run("framework update keeps progress", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Framework().Create(ctx, &model.Framework{Code: "NIST-" + token(), Name: "NIST", Type: types.FrameworkTypeSecurity, Status: types.FrameworkStatusDraft})
		gt.NoError(t, err).Required()

		progress := model.Progress{
			TotalControls:        4,
			ImplementedControls:  2,
			CompletionPercentage: 62.5,
			RiskDistribution:     model.RiskDistribution{High: 4},
		}
		gt.NoError(t, repo.Framework().UpdateProgress(ctx, created.ID, progress)).Required()

		created.Name = "NIST CSF"
		created.Status = types.FrameworkStatusActive
		created.Progress = model.Progress{}
		updated, err := repo.Framework().Update(ctx, created)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Name).Equal("NIST CSF")

		got, err := repo.Framework().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.FrameworkStatusActive)
		gt.Value(t, got.Progress.TotalControls).Equal(4)
		gt.Value(t, got.Progress.CompletionPercentage).Equal(62.5)
		gt.Value(t, got.Progress.RiskDistribution.High).Equal(4)
	})

	t.Run("framework list filters and paginates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tok := token()

		for i := range 3 {
			_, err := repo.Framework().Create(ctx, &model.Framework{
				Code:   fmt.Sprintf("LIST-%s-%d", tok, i),
				Name:   fmt.Sprintf("List %s %d", tok, i),
				Type:   types.FrameworkTypePrivacy,
				Status: types.FrameworkStatusDraft,
			})
			gt.NoError(t, err).Required()
		}

		query, err := model.FrameworkQuery{Search: tok, Limit: 2, SortBy: model.SortByCode, SortOrder: model.SortAsc}.Normalize()
		gt.NoError(t, err).Required()

		page, err := repo.Framework().List(ctx, query)
		gt.NoError(t, err).Required()
		gt.Value(t, page.Total).Equal(3)
		gt.Array(t, page.Items).Length(2)
		gt.Value(t, page.Items[0].Code).Equal(fmt.Sprintf("LIST-%s-0", tok))

		query.Page = 2
		page, err = repo.Framework().List(ctx, query)
		gt.NoError(t, err).Required()
		gt.Array(t, page.Items).Length(1)
		gt.Value(t, page.Items[0].Code).Equal(fmt.Sprintf("LIST-%s-2", tok))
	})

	t.Run("framework controls by framework and domain", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		fw, err := repo.Framework().Create(ctx, &model.Framework{Code: "FC-" + token(), Name: "FC", Type: types.FrameworkTypeCustom, Status: types.FrameworkStatusDraft})
		gt.NoError(t, err).Required()

		c1 := newFrameworkControl(t, repo, &fw.ID, "Access", types.ImplementationStatusImplemented)
		newFrameworkControl(t, repo, &fw.ID, "Logging", types.ImplementationStatusNotImplemented)
		loose := newFrameworkControl(t, repo, nil, "Access", types.ImplementationStatusNotImplemented)

		all, err := repo.FrameworkControl().ListByFramework(ctx, fw.ID, "")
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(2)
		gt.Value(t, all[0].ID).Equal(c1.ID)

		access, err := repo.FrameworkControl().ListByFramework(ctx, fw.ID, "Access")
		gt.NoError(t, err).Required()
		gt.Array(t, access).Length(1)

		got, err := repo.FrameworkControl().Get(ctx, loose.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, got.FrameworkID == nil).True()

		got.FrameworkID = &fw.ID
		got.ImplementationStatus = types.ImplementationStatusPartiallyImplemented
		_, err = repo.FrameworkControl().Update(ctx, got)
		gt.NoError(t, err).Required()

		all, err = repo.FrameworkControl().ListByFramework(ctx, fw.ID, "")
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(3)

		gt.NoError(t, repo.FrameworkControl().UnassignFramework(ctx, fw.ID)).Required()
		all, err = repo.FrameworkControl().ListByFramework(ctx, fw.ID, "")
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(0)

		got, err = repo.FrameworkControl().Get(ctx, c1.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, got.FrameworkID == nil).True()

		gt.NoError(t, repo.FrameworkControl().Delete(ctx, c1.ID)).Required()
		_, err = repo.FrameworkControl().Get(ctx, c1.ID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("catalog control create, filter and update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tok := token()

		c1 := newControl(t, repo, "IAC-"+tok, "Identity "+tok)
		newControl(t, repo, "LOG-"+tok, "Logging "+tok)

		gt.NoError(t, c1.ID.Validate()).Required()

		_, err := repo.Control().Create(ctx, &model.Control{Code: "IAC-" + tok, Name: "dup"})
		gt.Error(t, err).Is(interfaces.ErrDuplicateKey)

		byCode, err := repo.Control().GetByCode(ctx, "IAC-"+tok)
		gt.NoError(t, err).Required()
		gt.Value(t, byCode.ID).Equal(c1.ID)
		gt.Array(t, byCode.Mappings).Length(1)

		list, err := repo.Control().List(ctx, model.ControlFilter{Domain: "Identity " + tok})
		gt.NoError(t, err).Required()
		gt.Array(t, list).Length(1)

		list, err = repo.Control().List(ctx, model.ControlFilter{Search: strings.ToUpper("description of iac-" + tok)})
		gt.NoError(t, err).Required()
		gt.Array(t, list).Length(1)

		c1.Name = "Identity and access"
		c1.Mappings = nil
		updated, err := repo.Control().Update(ctx, c1)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Name).Equal("Identity and access")

		got, err := repo.Control().Get(ctx, c1.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Name).Equal("Identity and access")
		gt.Array(t, got.Mappings).Length(0)

		count, err := repo.Control().Count(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, count >= 2).True()

		_, err = repo.Control().Get(ctx, types.NewControlID())
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("risk create, filter and update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tok := token()

		created, err := repo.Risk().Create(ctx, &model.Risk{
			RiskID:             "R-" + tok,
			Title:              "Credential stuffing " + tok,
			InherentLikelihood: types.RiskLevelHigh,
			InherentImpact:     types.RiskLevelCritical,
			ResidualLikelihood: types.RiskLevelLow,
			ResidualImpact:     types.RiskLevelMedium,
			Treatment:          types.TreatmentMitigate,
			BusinessUnit:       "BU-" + tok,
			Creator:            "alice",
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, created.ID > 0).True()

		_, err = repo.Risk().Create(ctx, &model.Risk{RiskID: "R-" + tok, Title: "dup", Treatment: types.TreatmentAccept})
		gt.Error(t, err).Is(interfaces.ErrDuplicateKey)

		got, err := repo.Risk().GetByRiskID(ctx, "R-"+tok)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(created.ID)
		gt.Value(t, got.InherentScore()).Equal(20)
		gt.Value(t, got.ResidualScore()).Equal(6)

		list, err := repo.Risk().List(ctx, model.RiskFilter{BusinessUnit: "BU-" + tok})
		gt.NoError(t, err).Required()
		gt.Array(t, list).Length(1)

		list, err = repo.Risk().List(ctx, model.RiskFilter{Search: "stuffing " + tok, Treatment: types.TreatmentAvoid})
		gt.NoError(t, err).Required()
		gt.Array(t, list).Length(0)

		got.Treatment = types.TreatmentTransfer
		_, err = repo.Risk().Update(ctx, got)
		gt.NoError(t, err).Required()

		got, err = repo.Risk().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Treatment).Equal(types.TreatmentTransfer)
		gt.Value(t, got.Creator).Equal("alice")
	})

	t.Run("risk control links replace and cascade", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		tok := token()

		c1 := newControl(t, repo, "A-"+tok, "Link")
		c2 := newControl(t, repo, "B-"+tok, "Link")

		risk, err := repo.Risk().Create(ctx, &model.Risk{RiskID: "L-" + tok, Title: "Linked", Treatment: types.TreatmentMitigate})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.RiskControl().Replace(ctx, risk.ID, []types.ControlID{c2.ID, c1.ID, c2.ID}, "alice")).Required()

		links, err := repo.RiskControl().ListByRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(2)
		gt.Value(t, links[0].CreatedBy).Equal("alice")

		err = repo.RiskControl().Replace(ctx, risk.ID, []types.ControlID{c1.ID, types.NewControlID()}, "bob")
		gt.Error(t, err).Is(interfaces.ErrNotFound)

		links, err = repo.RiskControl().ListByRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(2)

		gt.NoError(t, repo.RiskControl().Replace(ctx, risk.ID, []types.ControlID{c1.ID}, "bob")).Required()

		byRisks, err := repo.RiskControl().ListByRisks(ctx, []int64{risk.ID, 987654321})
		gt.NoError(t, err).Required()
		gt.Array(t, byRisks[risk.ID]).Length(1)
		gt.Value(t, byRisks[risk.ID][0].ControlID).Equal(c1.ID)
		gt.Array(t, byRisks[987654321]).Length(0)

		riskIDs, err := repo.RiskControl().ListRiskIDsByControl(ctx, c1.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, riskIDs).Equal([]int64{risk.ID})

		riskIDs, err = repo.RiskControl().ListRiskIDsByControl(ctx, c2.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, riskIDs).Length(0)

		gt.NoError(t, repo.Risk().Delete(ctx, risk.ID)).Required()
		_, err = repo.Risk().Get(ctx, risk.ID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)

		links, err = repo.RiskControl().ListByRisk(ctx, risk.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(0)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		gt.NoError(t, repo.Ping(context.Background()))
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	repo, err := postgres.New(ctx, dsn, postgres.WithMaxAttempts(1))
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Migrate(ctx)).Required()
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestPostgresRepository(t *testing.T) {
	runRepositoryTest(t, newPostgresRepository)
}

func TestFirestoreRepository(t *testing.T) {
	runRepositoryTest(t, newFirestoreRepository)
}
