package model

import (
	"sort"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// FrameworkRiskReport summarizes where a framework's implementation gaps are
type FrameworkRiskReport struct {
	Framework  *Framework
	ByStatus   map[types.ImplementationStatus]int
	ByPriority map[types.Priority]int
	ByDomain   []DomainBreakdown
	Gaps       []*FrameworkControl
}

// DomainBreakdown is the progress of the controls sharing one domain
type DomainBreakdown struct {
	Domain   string
	Progress Progress
}

// BuildRiskReport groups controls by status, priority and domain, and lists critical/high
// priority controls that are not (fully) implemented.
func BuildRiskReport(framework *Framework, controls []*FrameworkControl) *FrameworkRiskReport {
	report := &FrameworkRiskReport{
		Framework:  framework,
		ByStatus:   make(map[types.ImplementationStatus]int),
		ByPriority: make(map[types.Priority]int),
		ByDomain:   []DomainBreakdown{},
		Gaps:       []*FrameworkControl{},
	}
	for _, s := range types.AllImplementationStatuses() {
		report.ByStatus[s] = 0
	}
	for _, p := range types.AllPriorities() {
		report.ByPriority[p] = 0
	}

	byDomain := make(map[string][]*FrameworkControl)
	for _, c := range controls {
		report.ByStatus[c.ImplementationStatus]++
		report.ByPriority[c.Priority]++
		byDomain[c.Domain] = append(byDomain[c.Domain], c)

		if c.Priority != types.PriorityCritical && c.Priority != types.PriorityHigh {
			continue
		}
		if c.ImplementationStatus == types.ImplementationStatusNotImplemented ||
			c.ImplementationStatus == types.ImplementationStatusPartiallyImplemented {
			report.Gaps = append(report.Gaps, c)
		}
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		report.ByDomain = append(report.ByDomain, DomainBreakdown{
			Domain:   d,
			Progress: ComputeProgress(byDomain[d]),
		})
	}

	sort.SliceStable(report.Gaps, func(i, j int) bool {
		a, b := report.Gaps[i], report.Gaps[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		return a.RequirementID < b.RequirementID
	})

	return report
}
