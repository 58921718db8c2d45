package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/renewal/internal/ir"
)

func TestMarkTriggered_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := ir.Comparison{RecordID: 55, CompareDate: day(2024, 1, 1), Track: ir.TrackFormSubmission}

	seen, err := s.AlreadyTriggered(ctx, testTenant, 10, c)
	require.NoError(t, err)
	assert.False(t, seen)

	res, err := s.MarkTriggered(ctx, testTenant, 10, c, "run-1", day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, ir.MarkInserted, res)

	res, err = s.MarkTriggered(ctx, testTenant, 10, c, "run-2", day(2024, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, ir.MarkAlreadyExists, res)

	seen, err = s.AlreadyTriggered(ctx, testTenant, 10, c)
	require.NoError(t, err)
	assert.True(t, seen)

	marks, err := s.ListMarks(ctx, testTenant, 10)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, int64(55), marks[0].RecordID)
	assert.Equal(t, day(2024, 1, 1), marks[0].CompareDate)
	assert.Equal(t, ir.MustLedgerHash(testTenant, 10, c), marks[0].Hash)
	assert.Equal(t, day(2024, 2, 1), marks[0].CreatedAt)
}

func TestAlreadyTriggered_KeyedOnEveryField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := ir.Comparison{RecordID: 55, CompareDate: day(2024, 1, 1), Track: ir.TrackFormSubmission}
	_, err := s.MarkTriggered(ctx, testTenant, 10, base, "run", day(2024, 2, 1))
	require.NoError(t, err)

	otherRecord := base
	otherRecord.RecordID = 56
	otherDate := base
	otherDate.CompareDate = day(2024, 1, 2)
	otherTrack := base
	otherTrack.Track = ir.TrackInvestigation

	for name, c := range map[string]ir.Comparison{
		"record": otherRecord, "date": otherDate, "track": otherTrack,
	} {
		seen, err := s.AlreadyTriggered(ctx, testTenant, 10, c)
		require.NoError(t, err)
		assert.False(t, seen, name)
	}

	seen, err := s.AlreadyTriggered(ctx, testTenant, 11, base)
	require.NoError(t, err)
	assert.False(t, seen, "entity")

	seen, err = s.AlreadyTriggered(ctx, 2, 10, base)
	require.NoError(t, err)
	assert.False(t, seen, "tenant")
}
