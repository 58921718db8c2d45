package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/renewal/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"date_tracks", "renewal_rules", "renewal_marks", "profiles", "risk_assessments",
		"cases", "form_submissions", "custom_date_fields", "profile_custom_dates",
		"renewal_transactions", "audit_log", "tenant_features", "renewal_runs",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range pragmas {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestSeedCatalog_MatchesTrackCatalog(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.db.Query("SELECT id, precedence, multi_valued FROM date_tracks ORDER BY precedence ASC")
	if err != nil {
		t.Fatalf("query date_tracks: %v", err)
	}
	defer rows.Close()

	var got []ir.TrackInfo
	for rows.Next() {
		var (
			ti    ir.TrackInfo
			id    string
			multi int
		)
		if err := rows.Scan(&id, &ti.Precedence, &multi); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ti.ID = ir.Track(id)
		ti.MultiValued = multi != 0
		got = append(got, ti)
	}

	want := ir.Catalog()
	if len(got) != len(want) {
		t.Fatalf("date_tracks has %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Precedence != want[i].Precedence || got[i].MultiValued != want[i].MultiValued {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConstraint_MarkHashUnique(t *testing.T) {
	s := createTestStore(t)

	insert := func() error {
		_, err := s.db.Exec(`
			INSERT INTO renewal_marks (tenant_id, entity_id, record_id, compare_date, track, hash, created_at)
			VALUES (1, 10, 55, '2024-01-01T00:00:00Z', 'form_submission', X'AA', '2024-02-01T00:00:00Z')
		`)
		return err
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := insert()
	if err == nil {
		t.Fatal("expected UNIQUE violation on duplicate hash")
	}
	if !isUniqueViolation(err) {
		t.Errorf("isUniqueViolation(%v) = false", err)
	}
}

func TestConstraint_RuleTrackForeignKey(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO renewal_rules (tenant_id, name, track, rank, fingerprint, created_at)
		VALUES (1, 'bogus', 'no_such_track', 1, 'fp', '2024-01-01T00:00:00Z')
	`)
	if err == nil {
		t.Error("expected foreign key violation for unknown track")
	}
}

func TestConstraint_ProfileCategoryPositive(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO profiles (id, tenant_id, entity_type, entity_category) VALUES (1, 1, 5, 0)
	`)
	if err == nil {
		t.Error("expected CHECK violation for category 0")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Pre-migration state: tables exist, fingerprint index does not
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("DROP INDEX idx_rules_fingerprint_active"); err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}

	indexes := getTableIndexes(t, s.db, "renewal_rules")
	if !slices.Contains(indexes, "idx_rules_fingerprint_active") {
		t.Errorf("expected idx_rules_fingerprint_active after migration, got indexes: %v", indexes)
	}
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
