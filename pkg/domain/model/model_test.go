package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

func fc(domain string, status types.ImplementationStatus, priority types.Priority, req string) *model.FrameworkControl {
	return &model.FrameworkControl{
		RequirementID:        req,
		Title:                req,
		Domain:               domain,
		ImplementationStatus: status,
		Priority:             priority,
	}
}

func TestComputeProgress(t *testing.T) {
	t.Run("no controls", func(t *testing.T) {
		p := model.ComputeProgress(nil)
		gt.Value(t, p.TotalControls).Equal(0)
		gt.Value(t, p.CompletionPercentage).Equal(0.0)
	})

	t.Run("partial credit is half", func(t *testing.T) {
		p := model.ComputeProgress([]*model.FrameworkControl{
			fc("CC6", types.ImplementationStatusImplemented, types.PriorityCritical, "CC6.1"),
			fc("CC6", types.ImplementationStatusImplemented, types.PriorityHigh, "CC6.2"),
			fc("CC7", types.ImplementationStatusPartiallyImplemented, types.PriorityHigh, "CC7.1"),
			fc("CC8", types.ImplementationStatusNotImplemented, types.PriorityMedium, "CC8.1"),
		})
		gt.Value(t, p.TotalControls).Equal(4)
		gt.Value(t, p.ImplementedControls).Equal(2)
		gt.Value(t, p.PartiallyImplementedControls).Equal(1)
		gt.Value(t, p.NotImplementedControls).Equal(1)
		gt.Value(t, p.CompletionPercentage).Equal(62.5)
		gt.Value(t, p.RiskDistribution).Equal(model.RiskDistribution{Critical: 1, High: 2, Medium: 1})
	})

	t.Run("not applicable stays in denominator", func(t *testing.T) {
		p := model.ComputeProgress([]*model.FrameworkControl{
			fc("A", types.ImplementationStatusImplemented, types.PriorityLow, "A1"),
			fc("A", types.ImplementationStatusNotApplicable, types.PriorityLow, "A2"),
			fc("A", types.ImplementationStatusImplemented, types.PriorityLow, "A3"),
		})
		gt.Value(t, p.CompletionPercentage).Equal(66.67)
		gt.Value(t, p.NotImplementedControls).Equal(0)
	})
}

func TestFrameworkQueryNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q, err := model.FrameworkQuery{}.Normalize()
		gt.NoError(t, err).Required()
		gt.Value(t, q.Page).Equal(1)
		gt.Value(t, q.Limit).Equal(model.DefaultPageLimit)
		gt.Value(t, q.SortBy).Equal(model.SortByCreatedAt)
		gt.Value(t, q.SortOrder).Equal(model.SortDesc)
	})

	t.Run("limit is capped", func(t *testing.T) {
		q, err := model.FrameworkQuery{Limit: 500, SortOrder: "ASC"}.Normalize()
		gt.NoError(t, err).Required()
		gt.Value(t, q.Limit).Equal(model.MaxPageLimit)
		gt.Value(t, q.SortOrder).Equal(model.SortAsc)
	})

	t.Run("unknown values are rejected", func(t *testing.T) {
		_, err := model.FrameworkQuery{SortBy: "owner", Type: "legal"}.Normalize()
		gt.Error(t, err).Is(model.ErrValidation)

		var ve model.ValidationErrors
		gt.Bool(t, errors.As(err, &ve)).True()
		gt.Array(t, ve).Length(2)
	})
}

func TestFrameworkQueryPaginate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []*model.Framework{
		{ID: 1, Code: "SOC2", Name: "SOC 2", Tags: []string{"Audit"}, CreatedAt: base, Progress: model.Progress{CompletionPercentage: 50}},
		{ID: 2, Code: "ISO27001", Name: "ISO 27001", Tags: []string{"audit"}, CreatedAt: base.Add(time.Hour), Progress: model.Progress{CompletionPercentage: 90}},
		{ID: 3, Code: "GDPR", Name: "GDPR", Type: types.FrameworkTypePrivacy, CreatedAt: base.Add(2 * time.Hour), Progress: model.Progress{CompletionPercentage: 50}},
	}

	t.Run("default order is newest first", func(t *testing.T) {
		q, err := model.FrameworkQuery{}.Normalize()
		gt.NoError(t, err).Required()
		page := q.Paginate(all)
		gt.Value(t, page.Total).Equal(3)
		gt.Value(t, page.Items[0].ID).Equal(int64(3))
	})

	t.Run("tag matches case-insensitively", func(t *testing.T) {
		q, err := model.FrameworkQuery{Tag: "AUDIT"}.Normalize()
		gt.NoError(t, err).Required()
		gt.Value(t, q.Paginate(all).Total).Equal(2)
	})

	t.Run("ties fall back to id", func(t *testing.T) {
		q, err := model.FrameworkQuery{SortBy: model.SortByCompletionPercentage, SortOrder: model.SortAsc}.Normalize()
		gt.NoError(t, err).Required()
		page := q.Paginate(all)
		gt.Value(t, page.Items[0].ID).Equal(int64(1))
		gt.Value(t, page.Items[1].ID).Equal(int64(3))
		gt.Value(t, page.Items[2].ID).Equal(int64(2))
	})

	t.Run("page beyond the end is empty", func(t *testing.T) {
		q, err := model.FrameworkQuery{Page: 5, Limit: 2}.Normalize()
		gt.NoError(t, err).Required()
		page := q.Paginate(all)
		gt.Value(t, page.Total).Equal(3)
		gt.Array(t, page.Items).Length(0)
	})

	t.Run("huge page number does not overflow", func(t *testing.T) {
		q, err := model.FrameworkQuery{Page: math.MaxInt}.Normalize()
		gt.NoError(t, err).Required()
		gt.Value(t, q.Offset()).Equal(math.MaxInt)

		page := q.Paginate(all)
		gt.Value(t, page.Total).Equal(3)
		gt.Value(t, page.Page).Equal(math.MaxInt)
		gt.Array(t, page.Items).Length(0)
	})
}

func TestFrameworkQueryOffset(t *testing.T) {
	gt.Value(t, model.FrameworkQuery{Page: 1, Limit: 20}.Offset()).Equal(0)
	gt.Value(t, model.FrameworkQuery{Page: 3, Limit: 20}.Offset()).Equal(40)
	gt.Value(t, model.FrameworkQuery{Page: 0, Limit: 20}.Offset()).Equal(0)
	gt.Value(t, model.FrameworkQuery{Page: math.MaxInt / 2, Limit: 3}.Offset()).Equal(math.MaxInt)
}

func TestBuildRiskReport(t *testing.T) {
	fw := &model.Framework{ID: 1, Code: "SOC2"}
	report := model.BuildRiskReport(fw, []*model.FrameworkControl{
		fc("CC7", types.ImplementationStatusPartiallyImplemented, types.PriorityHigh, "CC7.2"),
		fc("CC6", types.ImplementationStatusNotImplemented, types.PriorityCritical, "CC6.3"),
		fc("CC6", types.ImplementationStatusImplemented, types.PriorityCritical, "CC6.1"),
		fc("CC8", types.ImplementationStatusNotImplemented, types.PriorityLow, "CC8.1"),
		fc("CC7", types.ImplementationStatusNotImplemented, types.PriorityHigh, "CC7.1"),
	})

	gt.Value(t, report.ByStatus[types.ImplementationStatusNotImplemented]).Equal(3)
	gt.Value(t, report.ByStatus[types.ImplementationStatusNotApplicable]).Equal(0)
	gt.Value(t, report.ByPriority[types.PriorityMedium]).Equal(0)
	gt.Value(t, report.ByPriority[types.PriorityCritical]).Equal(2)

	gt.Array(t, report.ByDomain).Length(3)
	gt.Value(t, report.ByDomain[0].Domain).Equal("CC6")
	gt.Value(t, report.ByDomain[0].Progress.CompletionPercentage).Equal(50.0)

	gt.Array(t, report.Gaps).Length(3)
	gt.Value(t, report.Gaps[0].RequirementID).Equal("CC6.3")
	gt.Value(t, report.Gaps[1].RequirementID).Equal("CC7.1")
	gt.Value(t, report.Gaps[2].RequirementID).Equal("CC7.2")
}

func TestRisk(t *testing.T) {
	r := &model.Risk{
		RiskID:             "R-001",
		Title:              "Phishing",
		InherentLikelihood: types.RiskLevelHigh,
		InherentImpact:     types.RiskLevelHigh,
		ResidualLikelihood: types.RiskLevelLow,
		ResidualImpact:     types.RiskLevelVeryLow,
		Treatment:          types.TreatmentMitigate,
	}
	gt.NoError(t, r.Validate())
	gt.Value(t, r.InherentScore()).Equal(16)
	gt.Value(t, r.ResidualScore()).Equal(2)

	bad := r.Copy()
	bad.Title = " "
	bad.Treatment = "Ignore"
	bad.LinkedControls = []types.ControlID{"IAC-01"}
	err := bad.Validate()
	gt.Error(t, err).Is(model.ErrValidation)

	var ve model.ValidationErrors
	gt.Bool(t, errors.As(err, &ve)).True()
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field)
	}
	gt.Value(t, fields).Equal([]string{"title", "treatment", "linkedControls"})

	gt.Value(t, r.Title).Equal("Phishing")
}

func TestValidationErrorsThroughWrap(t *testing.T) {
	var errs model.ValidationErrors
	gt.NoError(t, errs.ErrOrNil())

	errs.Add("name", "name is required")
	wrapped := goerr.Wrap(errs.ErrOrNil(), "failed to create framework")
	gt.Error(t, wrapped).Is(model.ErrValidation)

	var ve model.ValidationErrors
	gt.Bool(t, errors.As(wrapped, &ve)).True()
	gt.Value(t, ve[0].Field).Equal("name")
}

func TestUniqueControlIDs(t *testing.T) {
	ids := model.UniqueControlIDs([]types.ControlID{"c", "a", "c", "b", "a"})
	gt.Value(t, ids).Equal([]types.ControlID{"a", "b", "c"})
	gt.Array(t, model.UniqueControlIDs(nil)).Length(0)

	mixed := model.UniqueControlIDs([]types.ControlID{
		"6F1C2A4E-9D7B-4A53-8E3F-2B1D0C9A8E7F",
		"6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f",
	})
	gt.Value(t, mixed).Equal([]types.ControlID{"6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f"})
}

func TestControlFilter(t *testing.T) {
	c := &model.Control{Code: "IAC-01", Source: "SCF", Name: "Identity Management", Description: "Manage identities", Domain: "IAC"}

	gt.Bool(t, model.ControlFilter{}.Match(c)).True()
	gt.Bool(t, model.ControlFilter{Search: "identity", Domain: "IAC"}.Match(c)).True()
	gt.Bool(t, model.ControlFilter{Search: "MANAGE", Source: "SCF"}.Match(c)).True()
	gt.Bool(t, model.ControlFilter{Source: "CIS"}.Match(c)).False()
	gt.Bool(t, model.ControlFilter{Search: "encryption"}.Match(c)).False()
}

func TestSameFramework(t *testing.T) {
	one, other := int64(1), int64(1)
	two := int64(2)

	gt.Bool(t, model.SameFramework(nil, nil)).True()
	gt.Bool(t, model.SameFramework(&one, &other)).True()
	gt.Bool(t, model.SameFramework(&one, &two)).False()
	gt.Bool(t, model.SameFramework(&one, nil)).False()
	gt.Bool(t, model.SameFramework(nil, &two)).False()
}

func TestBuildCatalogSummary(t *testing.T) {
	s := model.BuildCatalogSummary([]*model.Control{
		{Code: "IAC-01", Source: "SCF", Domain: "IAC"},
		{Code: "IAC-02", Source: "SCF", Domain: "IAC"},
		{Code: "CIS-4.1", Source: "CIS", Domain: "Secure Configuration"},
	})
	gt.Value(t, s.Total).Equal(3)
	gt.Value(t, s.BySource).Equal(map[string]int{"SCF": 2, "CIS": 1})
	gt.Value(t, s.ByDomain["IAC"]).Equal(2)

	empty := model.BuildCatalogSummary(nil)
	gt.Value(t, empty.Total).Equal(0)
	gt.Value(t, len(empty.BySource)).Equal(0)
}
