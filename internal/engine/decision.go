package engine

import (
	"context"
	"fmt"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/resolver"
)

// Outcome is the per-entity result of a run.
type Outcome string

const (
	OutcomeNoRules   Outcome = "skipped_no_rules"
	OutcomeExcluded  Outcome = "skipped_excluded"
	OutcomeActive    Outcome = "skipped_active"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeTriggered Outcome = "triggered"
	OutcomeFailed    Outcome = "failed"
)

// Decision records what happened to one entity.
type Decision struct {
	EntityID      int64
	Outcome       Outcome
	Info          *ir.ComparisonInfo
	TransactionID int64
}

func (e *Engine) decide(d Decision) {
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(d)
	}
}

// processEntity resolves rules for ent, evaluates them and triggers a
// renewal on the first match. Returned errors abort the run.
func (e *Engine) processEntity(ctx context.Context, r *run, ent ir.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.result.Scanned++

	rules, err := r.cache.Rules(ctx, ent)
	if err != nil {
		return fmt.Errorf("resolve rules for entity %d: %w", ent.ID, err)
	}
	switch {
	case len(rules) == 0:
		e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeNoRules})
		return nil
	case resolver.ExcludeOnly(rules):
		e.logger.Debug("entity excluded", "entity_id", ent.ID, "rule_id", rules[0].ID)
		e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeExcluded})
		return nil
	}

	active, err := e.deps.Sink.HasActiveTransaction(ctx, r.tenantID, ir.TransactionTypeRenewal, ent.ID, ent.EntityType)
	if err != nil {
		return fmt.Errorf("check active transaction for entity %d: %w", ent.ID, err)
	}
	if active {
		e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeActive})
		return nil
	}

	info, err := r.tracks.Evaluate(ctx, ent, rules)
	if err != nil {
		return err
	}
	if info == nil {
		e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeNoMatch})
		return nil
	}

	txID, ok := e.trigger(ctx, r, ent, info)
	if !ok {
		r.result.Failed++
		e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeFailed, Info: info})
		return nil
	}
	r.result.Triggered++
	e.decide(Decision{EntityID: ent.ID, Outcome: OutcomeTriggered, Info: info, TransactionID: txID})
	return nil
}

// trigger creates the renewal transaction and marks its comparisons.
// It reports false when no transaction was created.
func (e *Engine) trigger(ctx context.Context, r *run, ent ir.Entity, info *ir.ComparisonInfo) (int64, bool) {
	req := ir.TransactionRequest{
		TenantID:    r.tenantID,
		Op:          ir.TransactionOpCreate,
		Type:        ir.TransactionTypeRenewal,
		Status:      ir.TransactionStatusNew,
		EntityID:    ent.ID,
		EntityType:  ent.EntityType,
		TriggerID:   info.RuleID,
		TriggerType: ir.TriggerTypeRule,
		RunID:       r.id,
		RequestedAt: r.now,
	}
	marks := info.Marks()

	var txID int64
	if committer, ok := e.deps.Sink.(AtomicCommitter); ok && e.atomic {
		id, _, err := committer.CommitTrigger(ctx, req, marks)
		if err != nil {
			e.logger.Error("failed to commit renewal",
				"entity_id", ent.ID,
				"rule_id", info.RuleID,
				"run_id", r.id,
				"error", err,
			)
			return 0, false
		}
		txID = id
	} else {
		id, err := e.deps.Sink.CreateTransaction(ctx, req)
		if err != nil {
			e.logger.Error("failed to create renewal transaction",
				"entity_id", ent.ID,
				"rule_id", info.RuleID,
				"run_id", r.id,
				"error", err,
			)
			return 0, false
		}
		txID = id
		for _, c := range marks {
			if _, err := e.deps.Ledger.MarkTriggered(ctx, r.tenantID, ent.ID, c, r.id, r.now); err != nil {
				r.result.MarkFailures++
				e.logger.Error("failed to mark comparison",
					"entity_id", ent.ID,
					"record_id", c.RecordID,
					"track", c.Track,
					"run_id", r.id,
					"error", err,
				)
			}
		}
	}

	e.audit(ctx, r, ent, info, txID)
	e.logger.Info("renewal triggered",
		"entity_id", ent.ID,
		"rule_id", info.RuleID,
		"track", info.Track,
		"record_id", info.RecordID,
		"compare_date", ir.FormatStamp(info.CompareDate),
		"transaction_id", txID,
	)
	return txID, true
}

// audit appends the trigger event. Failure is logged only.
func (e *Engine) audit(ctx context.Context, r *run, ent ir.Entity, info *ir.ComparisonInfo, txID int64) {
	if e.deps.Audit == nil {
		return
	}
	err := e.deps.Audit.AppendAudit(ctx, ir.AuditEntry{
		TenantID:  r.tenantID,
		Actor:     e.actor,
		EventCode: EventRenewalTriggered,
		Message: fmt.Sprintf("renewal transaction %d created by rule %d (%s, record %d, %s)",
			txID, info.RuleID, info.Track, info.RecordID, ir.FormatStamp(info.CompareDate)),
		EntityID: ent.ID,
		At:       r.now,
	})
	if err != nil {
		e.logger.Warn("failed to append audit entry", "entity_id", ent.ID, "error", err)
	}
}
