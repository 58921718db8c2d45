package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// AlreadyTriggered reports whether the comparison is in the deduplication
// ledger for the entity.
func (s *Store) AlreadyTriggered(ctx context.Context, tenantID, entityID int64, c ir.Comparison) (bool, error) {
	hash, err := ir.LedgerHash(tenantID, entityID, c)
	if err != nil {
		return false, fmt.Errorf("already triggered: %w", err)
	}
	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM renewal_marks WHERE hash = ?
	`, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("already triggered: %w", err)
	}
	return count > 0, nil
}

// MarkTriggered records the comparison in the deduplication ledger.
//
// Uses ON CONFLICT(hash) DO NOTHING for idempotency. A collision means
// another run already recorded the comparison and is reported as
// ir.MarkAlreadyExists, not as an error.
func (s *Store) MarkTriggered(ctx context.Context, tenantID, entityID int64, c ir.Comparison, runID string, at time.Time) (ir.MarkResult, error) {
	return markTriggered(ctx, s.db, tenantID, entityID, c, runID, at)
}

func markTriggered(ctx context.Context, q queryer, tenantID, entityID int64, c ir.Comparison, runID string, at time.Time) (ir.MarkResult, error) {
	hash, err := ir.LedgerHash(tenantID, entityID, c)
	if err != nil {
		return 0, fmt.Errorf("mark triggered: %w", err)
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO renewal_marks
		(tenant_id, entity_id, record_id, compare_date, track, hash, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		tenantID, entityID, c.RecordID, ir.FormatStamp(c.CompareDate), string(c.Track),
		hash, runID, ir.FormatStamp(at),
	)
	if err != nil {
		return 0, fmt.Errorf("mark triggered: insert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark triggered: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ir.MarkAlreadyExists, nil
	}
	return ir.MarkInserted, nil
}

// ListMarks returns the ledger entries of one entity in insertion order.
func (s *Store) ListMarks(ctx context.Context, tenantID, entityID int64) ([]ir.LedgerEntry, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From: "renewal_marks",
		Columns: []queryir.Column{
			{Field: "tenant_id"}, {Field: "entity_id"}, {Field: "record_id"},
			{Field: "compare_date"}, {Field: "track"}, {Field: "hash"}, {Field: "created_at"},
		},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
			queryir.Equals{Field: "entity_id", Value: ir.IRInt(entityID)},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	defer rows.Close()

	var entries []ir.LedgerEntry
	for rows.Next() {
		var (
			e                    ir.LedgerEntry
			compareDate, created string
			track                string
		)
		if err := rows.Scan(&e.TenantID, &e.EntityID, &e.RecordID, &compareDate, &track, &e.Hash, &created); err != nil {
			return nil, fmt.Errorf("list marks: scan: %w", err)
		}
		e.Track = ir.Track(track)
		if e.CompareDate, err = ir.ParseDate(compareDate); err != nil {
			return nil, fmt.Errorf("list marks: compare date: %w", err)
		}
		if e.CreatedAt, err = ir.ParseDate(created); err != nil {
			return nil, fmt.Errorf("list marks: created at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return entries, nil
}
