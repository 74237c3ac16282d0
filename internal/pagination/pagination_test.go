package pagination

import (
	"testing"

	"github.com/mroshb/pair_quiz/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = map[string]string{
	"avgScores": "avg_scores",
	"sumScore":  "sum_score",
}

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		in   Params
		want Params
	}{
		{Params{}, Params{Page: 1, PageSize: DefaultPageSize}},
		{Params{Page: 3, PageSize: 5}, Params{Page: 3, PageSize: 5}},
		{Params{Page: -2, PageSize: 1000}, Params{Page: 1, PageSize: MaxPageSize}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
	}

	assert.Equal(t, 10, Params{Page: 3, PageSize: 5}.Offset())
	assert.Equal(t, 0, Params{}.Offset())
}

func TestNew(t *testing.T) {
	page := New([]string{"a", "b"}, 7, Params{Page: 2, PageSize: 2})
	assert.Equal(t, 4, page.PagesCount)
	assert.Equal(t, 2, page.Page)
	assert.EqualValues(t, 7, page.TotalCount)

	empty := New[string](nil, 0, Params{})
	assert.Equal(t, 0, empty.PagesCount)
	assert.NotNil(t, empty.Items)
}

func TestParseSort(t *testing.T) {
	fields, err := ParseSort([]string{"avgScores desc", "sumScore ASC", "avgScores asc", " "}, allowed)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, SortField{Field: "avgScores", Column: "avg_scores", Desc: true}, fields[0])
	assert.Equal(t, SortField{Field: "sumScore", Column: "sum_score", Desc: false}, fields[1])
	assert.Equal(t, "avg_scores DESC, sum_score ASC", OrderBy(fields))

	fields, err = ParseSort([]string{"sumScore"}, allowed)
	require.NoError(t, err)
	assert.True(t, fields[0].Desc)
	assert.Equal(t, "sumScore desc", fields[0].String())
}

func TestParseSort_Rejects(t *testing.T) {
	for _, term := range []string{"login desc", "avgScores sideways", "avgScores desc extra", "avg_scores; DROP TABLE users"} {
		_, err := ParseSort([]string{term}, allowed)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), "term %q: %v", term, err)
	}
}
