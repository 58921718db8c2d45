package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/renewal/internal/ir"
)

const testTenant int64 = 1

// createTestStore creates a new temp-file store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// day returns midnight UTC of the given date.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// addProfile inserts an active profile of the test tenant.
func addProfile(t *testing.T, s *Store, id int64, entityType, category int) {
	t.Helper()
	require.NoError(t, s.UpsertProfile(context.Background(), Profile{
		ID: id, TenantID: testTenant, EntityType: entityType, EntityCategory: category, Active: true,
	}))
}

// testRule builds a valid rule of the test tenant.
func testRule(name string, track ir.Track, risk, typ, cat int) ir.Rule {
	return ir.Rule{
		TenantID:       testTenant,
		Name:           name,
		Track:          track,
		Days:           30,
		RiskTier:       risk,
		EntityType:     typ,
		EntityCategory: cat,
	}
}
