package model

import (
	"math"
	"strings"
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// Framework is a named compliance standard grouping a set of framework controls
type Framework struct {
	ID            int64
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
	Progress      Progress
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Progress holds the rollup counters derived from a framework's controls
type Progress struct {
	TotalControls                int
	ImplementedControls          int
	PartiallyImplementedControls int
	NotImplementedControls       int
	CompletionPercentage         float64
	RiskDistribution             RiskDistribution
}

// RiskDistribution counts a framework's controls per priority
type RiskDistribution struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// ComputeProgress derives rollup counters from the controls currently assigned to a framework.
// Partially implemented controls count as half credit; not applicable controls stay in the denominator.
func ComputeProgress(controls []*FrameworkControl) Progress {
	var p Progress
	p.TotalControls = len(controls)

	for _, c := range controls {
		switch c.ImplementationStatus {
		case types.ImplementationStatusImplemented:
			p.ImplementedControls++
		case types.ImplementationStatusPartiallyImplemented:
			p.PartiallyImplementedControls++
		case types.ImplementationStatusNotImplemented:
			p.NotImplementedControls++
		}

		switch c.Priority {
		case types.PriorityCritical:
			p.RiskDistribution.Critical++
		case types.PriorityHigh:
			p.RiskDistribution.High++
		case types.PriorityMedium:
			p.RiskDistribution.Medium++
		case types.PriorityLow:
			p.RiskDistribution.Low++
		}
	}

	if p.TotalControls > 0 {
		score := float64(p.ImplementedControls) + 0.5*float64(p.PartiallyImplementedControls)
		p.CompletionPercentage = Round2(score / float64(p.TotalControls) * 100)
	}

	return p
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HasTag reports whether the framework carries tag (case-insensitive)
func (f *Framework) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate checks required fields and enumerations
func (f *Framework) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(f.Code) == "" {
		errs.Add("code", "code is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		errs.Add("name", "name is required")
	}
	if !f.Type.IsValid() {
		errs.Add("type", "type must be one of security, privacy, compliance, risk, custom")
	}
	if !f.Status.IsValid() {
		errs.Add("status", "status must be one of draft, active, in_progress, completed, archived")
	}
	return errs.ErrOrNil()
}

// Copy returns a deep copy of the framework
func (f *Framework) Copy() *Framework {
	copied := *f
	if f.Tags != nil {
		copied.Tags = append([]string{}, f.Tags...)
	}
	if f.CustomFields != nil {
		copied.CustomFields = make(map[string]any, len(f.CustomFields))
		for k, v := range f.CustomFields {
			copied.CustomFields[k] = v
		}
	}
	if f.EffectiveDate != nil {
		t := *f.EffectiveDate
		copied.EffectiveDate = &t
	}
	if f.ReviewDate != nil {
		t := *f.ReviewDate
		copied.ReviewDate = &t
	}
	return &copied
}
