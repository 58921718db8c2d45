package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogPrecedence(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 5)

	for i := 1; i < len(cat); i++ {
		assert.Less(t, cat[i-1].Precedence, cat[i].Precedence, "catalog must be in precedence order")
	}
	assert.Equal(t, TrackExclude, cat[0].ID)

	assert.True(t, TrackFormSubmission.MultiValued())
	assert.True(t, TrackCustomDate.MultiValued())
	assert.False(t, TrackStatusChange.MultiValued())
	assert.False(t, TrackExclude.Evaluable())
	assert.True(t, TrackInvestigation.Evaluable())
	assert.Equal(t, len(cat), Track("bogus").Precedence())
}

func TestCatalogCopy(t *testing.T) {
	cat := Catalog()
	cat[0].Precedence = 99
	assert.Equal(t, 0, TrackExclude.Precedence())
}

func TestParseTrack(t *testing.T) {
	tr, err := ParseTrack("investigation")
	require.NoError(t, err)
	assert.Equal(t, TrackInvestigation, tr)

	_, err = ParseTrack("renewal")
	assert.Error(t, err)
}

func TestDefaultRank(t *testing.T) {
	tests := []struct {
		risk, typ, cat int
		want           int
	}{
		{2, 5, 9, 1},
		{2, 0, 9, 2},
		{0, 5, 9, 3},
		{0, 0, 9, 4},
		{2, 5, 0, 5},
		{2, 0, 0, 6},
		{0, 5, 0, 7},
		{0, 0, 0, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultRank(tt.risk, tt.typ, tt.cat), "DefaultRank(%d,%d,%d)", tt.risk, tt.typ, tt.cat)
	}
}

func TestComparisonInfoMarks(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ci := ComparisonInfo{RuleID: 1, Comparison: Comparison{RecordID: 1, CompareDate: day, Track: TrackStatusChange}}
	assert.Len(t, ci.Marks(), 1)

	ci.AlsoMark = &Comparison{RecordID: 2, CompareDate: day, Track: TrackStatusChange}
	marks := ci.Marks()
	require.Len(t, marks, 2)
	assert.Equal(t, int64(2), marks[1].RecordID)
}

func TestDayArithmetic(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	target := AddDays(start, 30)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), target)

	assert.False(t, Reached(time.Date(2024, 1, 30, 23, 59, 59, 0, time.UTC), target))
	assert.True(t, Reached(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), target))
	assert.True(t, Reached(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), target))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2024-03-05T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "   ", "01/02/2024", "2024-13-01", "soon"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}
