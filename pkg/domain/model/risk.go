package model

import (
	"sort"
	"strings"
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// Risk is an organizational risk record. LinkedControls is never stored on the risk itself;
// it is projected from RiskControl rows whenever a risk is read.
type Risk struct {
	ID                 int64
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
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InherentScore is likelihood score times impact score before treatment
func (r *Risk) InherentScore() int {
	return r.InherentLikelihood.Score() * r.InherentImpact.Score()
}

// ResidualScore is likelihood score times impact score after treatment
func (r *Risk) ResidualScore() int {
	return r.ResidualLikelihood.Score() * r.ResidualImpact.Score()
}

// Validate checks required fields and enumerations
func (r *Risk) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(r.RiskID) == "" {
		errs.Add("riskId", "riskId is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		errs.Add("title", "title is required")
	}
	levels := []struct {
		field string
		level types.RiskLevel
	}{
		{"inherentLikelihood", r.InherentLikelihood},
		{"inherentImpact", r.InherentImpact},
		{"residualLikelihood", r.ResidualLikelihood},
		{"residualImpact", r.ResidualImpact},
	}
	for _, l := range levels {
		if !l.level.IsValid() {
			errs.Add(l.field, l.field+" must be one of very_low, low, medium, high, critical")
		}
	}
	if !r.Treatment.IsValid() {
		errs.Add("treatment", "treatment must be one of Accept, Mitigate, Transfer, Avoid")
	}
	for _, id := range r.LinkedControls {
		if err := id.Validate(); err != nil {
			errs.Add("linkedControls", "linkedControls must contain control UUIDs")
			break
		}
	}
	return errs.ErrOrNil()
}

// Copy returns a deep copy of the risk
func (r *Risk) Copy() *Risk {
	copied := *r
	if r.LinkedControls != nil {
		copied.LinkedControls = append([]types.ControlID{}, r.LinkedControls...)
	}
	return &copied
}

// RiskFilter narrows risk listings. Search matches riskId, title or description case-insensitively.
type RiskFilter struct {
	Search       string
	Treatment    types.Treatment
	BusinessUnit string
	RiskOwner    string
}

// Match reports whether r satisfies the filter
func (f RiskFilter) Match(r *Risk) bool {
	if f.Treatment != "" && r.Treatment != f.Treatment {
		return false
	}
	if f.BusinessUnit != "" && r.BusinessUnit != f.BusinessUnit {
		return false
	}
	if f.RiskOwner != "" && r.RiskOwner != f.RiskOwner {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.RiskID), q) &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) {
			return false
		}
	}
	return true
}

// UniqueControlIDs canonicalises, removes duplicates and sorts lexicographically
func UniqueControlIDs(ids []types.ControlID) []types.ControlID {
	seen := make(map[types.ControlID]struct{}, len(ids))
	result := make([]types.ControlID, 0, len(ids))
	for _, id := range ids {
		id = id.Canonical()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
