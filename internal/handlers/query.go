package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/pair_quiz/internal/pagination"
	"github.com/mroshb/pair_quiz/pkg/errors"
)

// listQuery is the paging and sorting query shared by list endpoints. Sorting is given either as
// repeated sort=field+dir terms or as a single sortBy/sortDirection pair.
type listQuery struct {
	PageNumber    int      `form:"pageNumber" binding:"omitempty,min=1"`
	PageSize      int      `form:"pageSize" binding:"omitempty,min=1,max=100"`
	SortBy        string   `form:"sortBy"`
	SortDirection string   `form:"sortDirection" binding:"omitempty,oneof=asc desc ASC DESC"`
	Sort          []string `form:"sort"`
}

func bindListQuery(c *gin.Context) (*listQuery, error) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid paging or sorting parameters")
	}
	return &q, nil
}

func (q *listQuery) params() pagination.Params {
	return pagination.Params{Page: q.PageNumber, PageSize: q.PageSize}.Normalize()
}

func (q *listQuery) sortTerms() []string {
	terms := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		if s = strings.TrimSpace(s); s != "" {
			terms = append(terms, s)
		}
	}
	if q.SortBy != "" {
		terms = append(terms, strings.TrimSpace(q.SortBy+" "+q.SortDirection))
	}
	return terms
}
