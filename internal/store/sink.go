package store

import (
	"context"
	"fmt"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// FeatureRenewalTriggers gates scheduled renewal runs per tenant.
const FeatureRenewalTriggers = "renewal_triggers"

// Transaction is a stored renewal workflow transaction.
type Transaction struct {
	ID          int64
	TenantID    int64
	Op          string
	Type        string
	Status      string
	EntityID    int64
	EntityType  int
	TriggerID   int64
	TriggerType string
	RunID       string
	CreatedAt   string
}

// activeStatuses are the transaction statuses that block a new renewal.
var activeStatuses = []string{ir.TransactionStatusNew, ir.TransactionStatusOpen}

// HasActiveTransaction reports whether a pending transaction of txType
// exists for the entity.
func (s *Store) HasActiveTransaction(ctx context.Context, tenantID int64, txType string, entityID int64, entityType int) (bool, error) {
	row, err := s.queryRow(ctx, s.db, queryir.Select{
		From:    "renewal_transactions",
		Columns: []queryir.Column{{Field: "id"}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
			queryir.Equals{Field: "type", Value: ir.IRString(txType)},
			queryir.Equals{Field: "entity_id", Value: ir.IRInt(entityID)},
			queryir.Equals{Field: "entity_type", Value: ir.IRInt(int64(entityType))},
			queryir.In{Field: "status", Values: queryir.Strings(activeStatuses...)},
		}},
		Limit: 1,
	})
	if err != nil {
		return false, fmt.Errorf("has active transaction: %w", err)
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("has active transaction: %w", err)
	}
	return true, nil
}

// CreateTransaction stores a renewal transaction and returns its id.
func (s *Store) CreateTransaction(ctx context.Context, req ir.TransactionRequest) (int64, error) {
	return createTransaction(ctx, s.db, req)
}

func createTransaction(ctx context.Context, q queryer, req ir.TransactionRequest) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO renewal_transactions
		(tenant_id, op, type, status, entity_id, entity_type, trigger_id, trigger_type, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.TenantID, req.Op, req.Type, req.Status, req.EntityID, req.EntityType,
		req.TriggerID, req.TriggerType, req.RunID, ir.FormatStamp(req.RequestedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create transaction: last insert id: %w", err)
	}
	return id, nil
}

// CommitTrigger atomically creates the renewal transaction and records every
// mark in the deduplication ledger in a single SQL transaction.
//
// This is the crash-safe variant of the sequence
// CreateTransaction → MarkTriggered(primary) → MarkTriggered(secondary).
// Either all rows are written or none are.
func (s *Store) CommitTrigger(ctx context.Context, req ir.TransactionRequest, marks []ir.Comparison) (txID int64, results []ir.MarkResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("commit trigger: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	txID, err = createTransaction(ctx, tx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("commit trigger: %w", err)
	}

	results = make([]ir.MarkResult, 0, len(marks))
	for _, c := range marks {
		res, err := markTriggered(ctx, tx, req.TenantID, req.EntityID, c, req.RunID, req.RequestedAt)
		if err != nil {
			return 0, nil, fmt.Errorf("commit trigger: %w", err)
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit trigger: commit: %w", err)
	}
	return txID, results, nil
}

// ListTransactions returns the tenant's renewal transactions in id order.
func (s *Store) ListTransactions(ctx context.Context, tenantID int64) ([]Transaction, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From: "renewal_transactions",
		Columns: []queryir.Column{
			{Field: "id"}, {Field: "tenant_id"}, {Field: "op"}, {Field: "type"}, {Field: "status"},
			{Field: "entity_id"}, {Field: "entity_type"}, {Field: "trigger_id"}, {Field: "trigger_type"},
			{Field: "run_id"}, {Field: "created_at"},
		},
		Filter: queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Op, &t.Type, &t.Status, &t.EntityID, &t.EntityType,
			&t.TriggerID, &t.TriggerType, &t.RunID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("list transactions: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// SetTransactionStatus moves a transaction to a new status.
func (s *Store) SetTransactionStatus(ctx context.Context, tenantID, id int64, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE renewal_transactions SET status = ? WHERE tenant_id = ? AND id = ?
	`, status, tenantID, id)
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set transaction status %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// AppendAudit writes one audit log line.
func (s *Store) AppendAudit(ctx context.Context, e ir.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (tenant_id, actor, event_code, message, entity_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.TenantID, e.Actor, e.EventCode, e.Message, e.EntityID, ir.FormatStamp(e.At))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns the tenant's audit entries in insertion order.
func (s *Store) ListAudit(ctx context.Context, tenantID int64) ([]ir.AuditEntry, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From: "audit_log",
		Columns: []queryir.Column{
			{Field: "tenant_id"}, {Field: "actor"}, {Field: "event_code"},
			{Field: "message"}, {Field: "entity_id"}, {Field: "created_at"},
		},
		Filter: queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
	})
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []ir.AuditEntry
	for rows.Next() {
		var (
			e  ir.AuditEntry
			at string
		)
		if err := rows.Scan(&e.TenantID, &e.Actor, &e.EventCode, &e.Message, &e.EntityID, &at); err != nil {
			return nil, fmt.Errorf("list audit: scan: %w", err)
		}
		if e.At, err = ir.ParseDate(at); err != nil {
			return nil, fmt.Errorf("list audit: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}

// FeatureEnabled reports whether a feature is on for the tenant.
// Features default to off.
func (s *Store) FeatureEnabled(ctx context.Context, tenantID int64, feature string) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled FROM tenant_features WHERE tenant_id = ? AND feature = ?
	`, tenantID, feature).Scan(&enabled)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("feature %s: %w", feature, err)
	}
	return enabled != 0, nil
}

// SetFeature turns a feature on or off for the tenant.
func (s *Store) SetFeature(ctx context.Context, tenantID int64, feature string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_features (tenant_id, feature, enabled) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id, feature) DO UPDATE SET enabled = excluded.enabled
	`, tenantID, feature, boolToInt(enabled))
	if err != nil {
		return fmt.Errorf("set feature %s: %w", feature, err)
	}
	return nil
}
