package tracks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/store"
)

// Clock provides the current time. Evaluators never call time.Now.
type Clock interface {
	Now() time.Time
}

// Ledger answers deduplication lookups.
type Ledger interface {
	AlreadyTriggered(ctx context.Context, tenantID, entityID int64, c ir.Comparison) (bool, error)
}

// Evidence reads the records evaluators compare against.
type Evidence interface {
	LatestFormSubmission(ctx context.Context, tenantID, entityID int64, fq store.FormQuery) (*store.Submission, error)
	LatestCompletedInvestigation(ctx context.Context, tenantID, entityID int64) (*store.CaseRecord, error)
	CustomDate(ctx context.Context, tenantID, entityID, fieldID int64) (string, bool, error)
}

// Env is what every evaluator reads from.
type Env struct {
	TenantID int64
	Ledger   Ledger
	Evidence Evidence
	Clock    Clock
	Logger   *slog.Logger
}

func (env Env) logger() *slog.Logger {
	if env.Logger == nil {
		return slog.Default()
	}
	return env.Logger
}

// Scope carries per-entity state across the rules of one evaluation.
type Scope struct {
	// formsTested holds form refs already evaluated for the entity.
	formsTested map[string]bool
	// specificForms lists form refs of form-specific rules seen so far.
	specificForms []string
}

func newScope() *Scope {
	return &Scope{formsTested: make(map[string]bool)}
}

// Evaluator decides whether one rule triggers for an entity.
// A nil result with a nil error means the rule does not trigger.
type Evaluator interface {
	Track() ir.Track
	Evaluate(ctx context.Context, env Env, e ir.Entity, r ir.Rule, scope *Scope) (*ir.ComparisonInfo, error)
}

// Set dispatches rules to the evaluator of their track.
type Set struct {
	env        Env
	evaluators map[ir.Track]Evaluator
}

// NewSet returns a Set with the four built-in evaluators.
func NewSet(env Env) *Set {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	s := &Set{env: env, evaluators: make(map[ir.Track]Evaluator)}
	for _, ev := range []Evaluator{StatusChange{}, FormSubmission{}, Investigation{}, CustomDate{}} {
		s.evaluators[ev.Track()] = ev
	}
	return s
}

// Evaluate walks rules in order and returns the first comparison that
// triggers, or nil. Exclude rules are skipped.
func (s *Set) Evaluate(ctx context.Context, e ir.Entity, rules []ir.Rule) (*ir.ComparisonInfo, error) {
	scope := newScope()
	for _, r := range rules {
		if r.IsExclude() {
			continue
		}
		ev, ok := s.evaluators[r.Track]
		if !ok {
			return nil, fmt.Errorf("rule %d: no evaluator for track %q", r.ID, r.Track)
		}
		info, err := ev.Evaluate(ctx, s.env, e, r, scope)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s) on entity %d: %w", r.ID, r.Track, e.ID, err)
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, nil
}

// normalComparison checks the non-modifier path of a rule: the comparison
// triggers when now is on or after date + days and it is not yet marked.
func normalComparison(ctx context.Context, env Env, e ir.Entity, r ir.Rule, c ir.Comparison) (*ir.Comparison, error) {
	if !ir.Reached(env.Clock.Now(), ir.AddDays(c.CompareDate, r.Days)) {
		return nil, nil
	}
	marked, err := env.Ledger.AlreadyTriggered(ctx, env.TenantID, e.ID, c)
	if err != nil {
		return nil, err
	}
	if marked {
		return nil, nil
	}
	return &c, nil
}

// dateModifierTrigger checks the date-modifier path of a rule. The
// comparison record is the custom date field; a missing or malformed value
// never triggers.
func dateModifierTrigger(ctx context.Context, env Env, e ir.Entity, r ir.Rule) (*ir.Comparison, error) {
	if !r.HasModifier() {
		return nil, nil
	}
	raw, found, err := env.Evidence.CustomDate(ctx, env.TenantID, e.ID, r.DateModifier)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	date, err := ir.ParseDate(raw)
	if err != nil {
		env.logger().Debug("ignoring custom date",
			"entity_id", e.ID,
			"field_id", r.DateModifier,
			"error", err,
		)
		return nil, nil
	}

	c := ir.Comparison{RecordID: r.DateModifier, CompareDate: date, Track: r.Track}
	marked, err := env.Ledger.AlreadyTriggered(ctx, env.TenantID, e.ID, c)
	if err != nil {
		return nil, err
	}
	if marked {
		return nil, nil
	}

	target := date
	if !r.ModifierIsAbsolute {
		target = ir.AddDays(date, r.Days)
	}
	if !ir.Reached(env.Clock.Now(), target) {
		return nil, nil
	}
	return &c, nil
}

// combine builds the result of a rule from its two paths. The modifier
// path wins; a co-occurring normal comparison rides along as AlsoMark.
func combine(r ir.Rule, modifier, normal *ir.Comparison) *ir.ComparisonInfo {
	switch {
	case modifier != nil:
		return &ir.ComparisonInfo{RuleID: r.ID, Comparison: *modifier, AlsoMark: normal}
	case normal != nil:
		return &ir.ComparisonInfo{RuleID: r.ID, Comparison: *normal}
	default:
		return nil
	}
}
