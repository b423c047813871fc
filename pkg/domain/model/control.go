package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// Control is a reusable master definition in the control catalog
type Control struct {
	ID          types.ControlID
	Code        string // business code such as "IAC-01" or "CIS-4.1"
	Source      string
	Name        string
	Description string
	Domain      string
	Mappings    []ControlMapping
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ControlMapping cross-references a catalog control to another standard
type ControlMapping struct {
	Standard  string
	Reference string
}

// Validate checks required fields
func (c *Control) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.Code) == "" {
		errs.Add("controlId", "controlId is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		errs.Add("name", "name is required")
	}
	for _, m := range c.Mappings {
		if strings.TrimSpace(m.Standard) == "" || strings.TrimSpace(m.Reference) == "" {
			errs.Add("mappings", "mapping requires standard and reference")
			break
		}
	}
	return errs.ErrOrNil()
}

// Copy returns a deep copy of the control
func (c *Control) Copy() *Control {
	copied := *c
	if c.Mappings != nil {
		copied.Mappings = append([]ControlMapping{}, c.Mappings...)
	}
	return &copied
}

// ControlFilter narrows catalog listings. Domain and Source are exact matches; Search is a
// case-insensitive substring match against Name or Description. Set filters combine with AND.
type ControlFilter struct {
	Domain string
	Source string
	Search string
}

// Match reports whether c satisfies the filter
func (f ControlFilter) Match(c *Control) bool {
	if f.Domain != "" && c.Domain != f.Domain {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Name), q) &&
			!strings.Contains(strings.ToLower(c.Description), q) {
			return false
		}
	}
	return true
}

// CatalogSummary aggregates catalog counts
type CatalogSummary struct {
	Total    int
	BySource map[string]int
	ByDomain map[string]int
}

// BuildCatalogSummary counts controls overall, per source and per domain
func BuildCatalogSummary(controls []*Control) *CatalogSummary {
	s := &CatalogSummary{
		Total:    len(controls),
		BySource: make(map[string]int),
		ByDomain: make(map[string]int),
	}
	for _, c := range controls {
		s.BySource[c.Source]++
		s.ByDomain[c.Domain]++
	}
	return s
}
