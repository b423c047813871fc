package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// FrameworkControl is a control instance optionally scoped to one framework.
// A nil FrameworkID means the control is unassigned.
type FrameworkControl struct {
	ID                     int64
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
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate checks required fields and enumerations
func (c *FrameworkControl) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.RequirementID) == "" {
		errs.Add("requirementId", "requirementId is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		errs.Add("title", "title is required")
	}
	if !c.ImplementationStatus.IsValid() {
		errs.Add("implementationStatus", "implementationStatus must be one of not_implemented, partially_implemented, implemented, not_applicable")
	}
	if !c.Priority.IsValid() {
		errs.Add("priority", "priority must be one of critical, high, medium, low")
	}
	return errs.ErrOrNil()
}

// InFramework reports whether the control is assigned to frameworkID
func (c *FrameworkControl) InFramework(frameworkID int64) bool {
	return c.FrameworkID != nil && *c.FrameworkID == frameworkID
}

// Copy returns a deep copy of the control
func (c *FrameworkControl) Copy() *FrameworkControl {
	copied := *c
	if c.FrameworkID != nil {
		id := *c.FrameworkID
		copied.FrameworkID = &id
	}
	return &copied
}

// SameFramework compares two nullable framework IDs
func SameFramework(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
