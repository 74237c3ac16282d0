package pagination

import (
	"fmt"
	"strings"

	"github.com/mroshb/pair_quiz/pkg/errors"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to at least 1 and the page size to (0, MaxPageSize].
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Params) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

func (p Params) Limit() int {
	return p.Normalize().PageSize
}

// Page is the paginated envelope returned by list endpoints.
type Page[T any] struct {
	PagesCount int   `json:"pagesCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	Items      []T   `json:"items"`
}

func New[T any](items []T, totalCount int64, p Params) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		PagesCount: int((totalCount + int64(p.PageSize) - 1) / int64(p.PageSize)),
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: totalCount,
		Items:      items,
	}
}

// SortField is one ORDER BY term. Column is already resolved against a whitelist.
type SortField struct {
	Field  string
	Column string
	Desc   bool
}

func (s SortField) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return s.Field + " " + dir
}

// OrderBy renders fields as an SQL ORDER BY list.
func OrderBy(fields []SortField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, f.Column+" "+dir)
	}
	return strings.Join(parts, ", ")
}

// ParseSort parses terms like "avgScores desc" against allowed (API field -> column).
// The direction defaults to desc. Repeated fields keep their first occurrence.
func ParseSort(terms []string, allowed map[string]string) ([]SortField, error) {
	var fields []SortField
	seen := make(map[string]bool)

	for _, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		if len(parts) > 2 {
			return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("invalid sort %q", term))
		}

		column, ok := allowed[parts[0]]
		if !ok {
			return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("unknown sort field %q", parts[0]))
		}

		desc := true
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
				desc = false
			case "desc":
			default:
				return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("invalid sort direction %q", parts[1]))
			}
		}

		if seen[parts[0]] {
			continue
		}
		seen[parts[0]] = true
		fields = append(fields, SortField{Field: parts[0], Column: column, Desc: desc})
	}

	return fields, nil
}
