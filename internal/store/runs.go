package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// runStatsVersion is written into every stats document.
const runStatsVersion = 1

// RunStats is the documented shape of renewal_runs.stats.
type RunStats struct {
	Version      int `json:"version"`
	Categories   int `json:"categories"`
	Scanned      int `json:"scanned"`
	Triggered    int `json:"triggered"`
	Failed       int `json:"failed"`
	MarkFailures int `json:"mark_failures"`
}

// RunRecord is one finished run.
type RunRecord struct {
	RunID      string
	TenantID   int64
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      RunStats
}

// marshalStats converts RunStats to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical runs store identical documents.
func marshalStats(st RunStats) (string, error) {
	data, err := ir.MarshalCanonical(ir.IRObject{
		"version":       ir.IRInt(runStatsVersion),
		"categories":    ir.IRInt(int64(st.Categories)),
		"scanned":       ir.IRInt(int64(st.Scanned)),
		"triggered":     ir.IRInt(int64(st.Triggered)),
		"failed":        ir.IRInt(int64(st.Failed)),
		"mark_failures": ir.IRInt(int64(st.MarkFailures)),
	})
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

// unmarshalStats parses a stored stats document.
func unmarshalStats(data string) (RunStats, error) {
	var st RunStats
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return RunStats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	if st.Version != runStatsVersion {
		return RunStats{}, fmt.Errorf("unmarshal stats: unsupported version %d", st.Version)
	}
	return st, nil
}

// RecordRun stores the summary of a finished run. Recording the same run id
// twice keeps the first record.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	stats, err := marshalStats(rec.Stats)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO renewal_runs (run_id, tenant_id, started_at, finished_at, stats)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, rec.RunID, rec.TenantID, ir.FormatStamp(rec.StartedAt), ir.FormatStamp(rec.FinishedAt), stats)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}
	return nil
}

// ListRuns returns the tenant's most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, tenantID int64, limit int) ([]RunRecord, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From: "renewal_runs",
		Columns: []queryir.Column{
			{Field: "run_id"}, {Field: "tenant_id"}, {Field: "started_at"},
			{Field: "finished_at"}, {Field: "stats"},
		},
		Filter:  queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
		OrderBy: []queryir.Order{{Field: "started_at", Desc: true}, {Field: "run_id", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                      RunRecord
			started, finished, stats string
		)
		if err := rows.Scan(&rec.RunID, &rec.TenantID, &started, &finished, &stats); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if rec.StartedAt, err = ir.ParseDate(started); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if rec.FinishedAt, err = ir.ParseDate(finished); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if rec.Stats, err = unmarshalStats(stats); err != nil {
			return nil, fmt.Errorf("list runs: run %s: %w", rec.RunID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
