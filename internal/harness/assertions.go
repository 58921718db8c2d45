package harness

import (
	"context"
	"fmt"

	"github.com/roach88/renewal/internal/store"
)

// AssertionContext gives assertions access to the final store.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	TenantID int64
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertDecision:
		return assertDecision(result, a)
	case AssertTransactionCount:
		return assertTransactionCount(a, actx)
	case AssertMarkCount:
		marks, err := actx.Store.ListMarks(actx.Ctx, actx.TenantID, a.Entity)
		if err != nil {
			return err
		}
		return compareCount("marks", len(marks), a.Count)
	case AssertAuditCount:
		entries, err := actx.Store.ListAudit(actx.Ctx, actx.TenantID)
		if err != nil {
			return err
		}
		return compareCount("audit lines", len(entries), a.Count)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertDecision(result *Result, a Assertion) error {
	ev := result.Decision(a.Run, a.Entity)
	if ev == nil {
		return fmt.Errorf("no decision for entity %d in run %d", a.Entity, a.Run)
	}
	if ev.Outcome != a.Outcome {
		return fmt.Errorf("entity %d: outcome %s, want %s", a.Entity, ev.Outcome, a.Outcome)
	}
	if a.Rule != "" && ev.Rule != a.Rule {
		return fmt.Errorf("entity %d: rule %q, want %q", a.Entity, ev.Rule, a.Rule)
	}
	if a.Track != "" && ev.Track != a.Track {
		return fmt.Errorf("entity %d: track %q, want %q", a.Entity, ev.Track, a.Track)
	}
	return nil
}

func assertTransactionCount(a Assertion, actx *AssertionContext) error {
	txs, err := actx.Store.ListTransactions(actx.Ctx, actx.TenantID)
	if err != nil {
		return err
	}
	n := 0
	for _, tx := range txs {
		if a.Entity == 0 || tx.EntityID == a.Entity {
			n++
		}
	}
	return compareCount("transactions", n, a.Count)
}

func compareCount(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%d %s, want %d", got, what, want)
	}
	return nil
}
