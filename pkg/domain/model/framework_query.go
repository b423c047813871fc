package model

import (
	"math"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// FrameworkSortKey names a sortable framework attribute
type FrameworkSortKey string

const (
	SortByName                 FrameworkSortKey = "name"
	SortByCode                 FrameworkSortKey = "code"
	SortByCreatedAt            FrameworkSortKey = "createdAt"
	SortByUpdatedAt            FrameworkSortKey = "updatedAt"
	SortByCompletionPercentage FrameworkSortKey = "completionPercentage"
)

// SortOrder is asc or desc
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FrameworkQuery holds list filters, pagination and ordering for frameworks.
// Zero values mean "not filtered".
type FrameworkQuery struct {
	Search    string
	Type      types.FrameworkType
	Status    types.FrameworkStatus
	Owner     string
	Industry  string
	Tag       string
	Page      int
	Limit     int
	SortBy    FrameworkSortKey
	SortOrder SortOrder
}

// FrameworkPage is one page of a framework listing
type FrameworkPage struct {
	Items []*Framework
	Total int
	Page  int
	Limit int
}

// Normalize fills defaults and rejects unknown enumeration values
func (q FrameworkQuery) Normalize() (FrameworkQuery, error) {
	var errs ValidationErrors

	if q.Type != "" && !q.Type.IsValid() {
		errs.Add("type", "unknown framework type")
	}
	if q.Status != "" && !q.Status.IsValid() {
		errs.Add("status", "unknown framework status")
	}

	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageLimit
	case q.Limit > MaxPageLimit:
		q.Limit = MaxPageLimit
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortByCreatedAt
	case SortByName, SortByCode, SortByCreatedAt, SortByUpdatedAt, SortByCompletionPercentage:
	default:
		errs.Add("sortBy", "sortBy must be one of name, code, createdAt, updatedAt, completionPercentage")
	}

	switch strings.ToLower(string(q.SortOrder)) {
	case "":
		q.SortOrder = SortDesc
	case string(SortAsc):
		q.SortOrder = SortAsc
	case string(SortDesc):
		q.SortOrder = SortDesc
	default:
		errs.Add("sortOrder", "sortOrder must be asc or desc")
	}

	if err := errs.ErrOrNil(); err != nil {
		return q, goerr.Wrap(err, "invalid framework query")
	}
	return q, nil
}

// Offset returns the number of items skipped before the current page.
// It saturates at math.MaxInt instead of overflowing for very large pages.
func (q FrameworkQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Match reports whether f satisfies every filter of the query
func (q FrameworkQuery) Match(f *Framework) bool {
	if q.Type != "" && f.Type != q.Type {
		return false
	}
	if q.Status != "" && f.Status != q.Status {
		return false
	}
	if q.Owner != "" && f.Owner != q.Owner {
		return false
	}
	if q.Industry != "" && f.Industry != q.Industry {
		return false
	}
	if q.Tag != "" && !f.HasTag(q.Tag) {
		return false
	}
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(f.Code), s) &&
			!strings.Contains(strings.ToLower(f.Name), s) &&
			!strings.Contains(strings.ToLower(f.Description), s) {
			return false
		}
	}
	return true
}

// Paginate filters, sorts and slices frameworks in memory. Backends without query push-down use it.
func (q FrameworkQuery) Paginate(all []*Framework) *FrameworkPage {
	matched := make([]*Framework, 0, len(all))
	for _, f := range all {
		if q.Match(f) {
			matched = append(matched, f)
		}
	}

	SortFrameworks(matched, q.SortBy, q.SortOrder)

	page := &FrameworkPage{
		Items: []*Framework{},
		Total: len(matched),
		Page:  q.Page,
		Limit: q.Limit,
	}
	start := q.Offset()
	if start >= len(matched) {
		return page
	}
	end := start + q.Limit
	if end > len(matched) || end < start {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page
}

// SortFrameworks orders frameworks by key; ties fall back to ID ascending so paging is stable
func SortFrameworks(fs []*Framework, key FrameworkSortKey, order SortOrder) {
	less := func(a, b *Framework) int {
		switch key {
		case SortByName:
			return strings.Compare(a.Name, b.Name)
		case SortByCode:
			return strings.Compare(a.Code, b.Code)
		case SortByUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByCompletionPercentage:
			switch {
			case a.Progress.CompletionPercentage < b.Progress.CompletionPercentage:
				return -1
			case a.Progress.CompletionPercentage > b.Progress.CompletionPercentage:
				return 1
			}
			return 0
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}

	sort.SliceStable(fs, func(i, j int) bool {
		c := less(fs[i], fs[j])
		if c == 0 {
			return fs[i].ID < fs[j].ID
		}
		if order == SortAsc {
			return c < 0
		}
		return c > 0
	})
}
