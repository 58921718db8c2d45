package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalStats_Canonical(t *testing.T) {
	got, err := marshalStats(RunStats{Categories: 2, Scanned: 10, Triggered: 3, Failed: 1})
	require.NoError(t, err)
	assert.Equal(t,
		`{"categories":2,"failed":1,"mark_failures":0,"scanned":10,"triggered":3,"version":1}`,
		got)

	st, err := unmarshalStats(got)
	require.NoError(t, err)
	assert.Equal(t, RunStats{Version: 1, Categories: 2, Scanned: 10, Triggered: 3, Failed: 1}, st)
}

func TestUnmarshalStats_RejectsUnknownVersion(t *testing.T) {
	_, err := unmarshalStats(`{"version":9}`)
	assert.ErrorContains(t, err, "unsupported version")
}

func TestRecordRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := RunRecord{RunID: "a", TenantID: testTenant, StartedAt: day(2024, 1, 1), FinishedAt: day(2024, 1, 1),
		Stats: RunStats{Scanned: 5, Triggered: 1}}
	second := RunRecord{RunID: "b", TenantID: testTenant, StartedAt: day(2024, 1, 2), FinishedAt: day(2024, 1, 2),
		Stats: RunStats{Scanned: 5}}

	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))
	require.NoError(t, s.RecordRun(ctx, second), "same run id twice is a no-op")

	runs, err := s.ListRuns(ctx, testTenant, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)
	assert.Equal(t, "a", runs[1].RunID)
	assert.Equal(t, 1, runs[1].Stats.Triggered)
	assert.Equal(t, 1, runs[1].Stats.Version)
}
