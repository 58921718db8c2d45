package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/renewal/internal/compiler"
	"github.com/roach88/renewal/internal/engine"
	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/store"
	"github.com/roach88/renewal/internal/testutil"
)

// Harness holds the state of one scenario execution.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	clock    *testutil.FixedClock
	logger   *slog.Logger

	fields    map[string]int64
	ruleNames map[int64]string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Seed custom fields, rules, profiles, ledger marks and transactions
//  2. Run the engine once per run step with the clock at the step's instant
//  3. Check run expectations and evaluate assertions
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in Result.
func Run(s *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario:  s,
		store:     st,
		clock:     testutil.NewFixedClock(time.Time{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		fields:    make(map[string]int64),
		ruleNames: make(map[int64]string),
	}

	ctx := context.Background()
	if err := h.seed(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	result := NewResult()
	if err := h.executeRuns(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute runs: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, TenantID: s.Tenant}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context) error {
	s := h.scenario
	if !s.FeatureDisabled {
		if err := h.store.SetFeature(ctx, s.Tenant, store.FeatureRenewalTriggers, true); err != nil {
			return err
		}
	}
	for _, name := range s.CustomFields {
		id, err := h.store.AddCustomDateField(ctx, s.Tenant, name)
		if err != nil {
			return err
		}
		h.fields[name] = id
	}
	if err := h.seedRules(ctx); err != nil {
		return err
	}
	for _, p := range s.Profiles {
		if err := h.seedProfile(ctx, p); err != nil {
			return fmt.Errorf("profile %d: %w", p.ID, err)
		}
	}
	for i, m := range s.Marks {
		date, _ := ir.ParseDate(m.Date)
		c := ir.Comparison{RecordID: m.Record, CompareDate: date, Track: ir.Track(m.Track)}
		if _, err := h.store.MarkTriggered(ctx, s.Tenant, m.Entity, c, "seed", date); err != nil {
			return fmt.Errorf("marks[%d]: %w", i, err)
		}
	}
	for i, tx := range s.Transactions {
		status := tx.Status
		if status == "" {
			status = ir.TransactionStatusNew
		}
		_, err := h.store.CreateTransaction(ctx, ir.TransactionRequest{
			TenantID:    s.Tenant,
			Op:          ir.TransactionOpCreate,
			Type:        ir.TransactionTypeRenewal,
			Status:      status,
			EntityID:    tx.Entity,
			EntityType:  h.profileType(tx.Entity),
			TriggerType: ir.TriggerTypeRule,
			RunID:       "seed",
		})
		if err != nil {
			return fmt.Errorf("transactions[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) seedRules(ctx context.Context) error {
	s := h.scenario
	var rules []ir.Rule
	if s.RulesFile != "" {
		compiled, err := compileRulesFile(s.RulesFile)
		if err != nil {
			return err
		}
		rules = append(rules, compiled...)
	}
	for _, d := range s.Rules {
		rules = append(rules, ir.Rule{
			Name:               d.Name,
			Track:              ir.Track(d.Track),
			Days:               d.Days,
			RiskTier:           d.RiskTier,
			EntityType:         d.EntityType,
			EntityCategory:     d.EntityCategory,
			Rank:               d.Rank,
			FormRef:            d.FormRef,
			DateModifier:       h.fields[d.DateModifier],
			ModifierIsAbsolute: d.ModifierAbsolute,
		})
	}
	for _, r := range rules {
		r.TenantID = s.Tenant
		stored, err := h.store.InsertRule(ctx, r, time.Time{})
		if err != nil {
			return err
		}
		h.ruleNames[stored.ID] = stored.Name
	}
	return nil
}

func compileRulesFile(path string) ([]ir.Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	v := cuecontext.New().CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile rules file: %w", err)
	}
	rules, errs := compiler.CompileRules(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := compiler.ValidateSet(rules); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return rules, nil
}

func (h *Harness) seedProfile(ctx context.Context, p ProfileDef) error {
	tenant := h.scenario.Tenant
	prof := store.Profile{
		ID:             p.ID,
		TenantID:       tenant,
		Name:           fmt.Sprintf("profile-%d", p.ID),
		EntityType:     p.Type,
		EntityCategory: p.Category,
		Active:         !p.Inactive,
		Deleted:        p.Deleted,
	}
	if p.StatusChangedAt != "" {
		t, err := ir.ParseDate(p.StatusChangedAt)
		if err != nil {
			return err
		}
		prof.StatusChangedAt = &t
	}
	if err := h.store.UpsertProfile(ctx, prof); err != nil {
		return err
	}
	if p.Risk != nil {
		if _, err := h.store.AddRiskAssessment(ctx, tenant, p.ID, *p.Risk, time.Time{}); err != nil {
			return err
		}
	}
	for name, value := range p.CustomDates {
		if err := h.store.SetCustomDate(ctx, tenant, p.ID, h.fields[name], value); err != nil {
			return err
		}
	}
	for _, c := range p.Cases {
		rec := store.Case{
			TenantID:  tenant,
			ProfileID: p.ID,
			Type:      c.Type,
			Stage:     c.Stage,
			Deleted:   c.Deleted,
		}
		if c.CompletedAt != "" {
			t, err := ir.ParseDate(c.CompletedAt)
			if err != nil {
				return err
			}
			rec.CompletedAt = &t
		}
		caseID, err := h.store.AddCase(ctx, rec)
		if err != nil {
			return err
		}
		for _, f := range c.Forms {
			var submitted *time.Time
			if f.SubmittedAt != "" {
				t, err := ir.ParseDate(f.SubmittedAt)
				if err != nil {
					return err
				}
				submitted = &t
			}
			if _, err := h.store.AddFormSubmission(ctx, tenant, p.ID, caseID, f.Ref, submitted); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Harness) profileType(id int64) int {
	for _, p := range h.scenario.Profiles {
		if p.ID == id {
			return p.Type
		}
	}
	return 0
}

// executeRuns runs the engine once per run step. A RunError is recorded
// in the result rather than returned.
func (h *Harness) executeRuns(ctx context.Context, result *Result) error {
	s := h.scenario
	ids := make([]string, len(s.Runs))
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}

	current := 0
	deps := engine.StoreDeps(h.store)
	deps.Clock = h.clock
	deps.RunIDs = engine.NewFixedGenerator(ids...)
	deps.Logger = h.logger

	opts := []engine.Option{
		engine.WithHooks(engine.Hooks{OnDecision: func(d engine.Decision) {
			result.Trace = append(result.Trace, h.decisionEvent(current, d))
		}}),
	}
	if s.AtomicCommit != nil {
		opts = append(opts, engine.WithAtomicCommit(*s.AtomicCommit))
	}
	if s.PageSize > 0 {
		opts = append(opts, engine.WithPageSize(s.PageSize))
	}
	eng, err := engine.New(deps, opts...)
	if err != nil {
		return err
	}

	for i, step := range s.Runs {
		current = i
		at, _ := ir.ParseDate(step.At)
		h.clock.Set(at)

		res, err := eng.Run(ctx, s.Tenant, step.Entity)
		if err != nil {
			result.AddError(fmt.Sprintf("runs[%d]: %v", i, err))
		}
		result.Runs = append(result.Runs, res)
		result.Trace = append(result.Trace, TraceEvent{
			Type:      EventRun,
			Run:       i,
			RunID:     res.RunID,
			Scanned:   res.Scanned,
			Triggered: res.Triggered,
			Failed:    res.Failed,
		})
		checkExpect(i, step.Expect, res, result)
	}
	return nil
}

func (h *Harness) decisionEvent(run int, d engine.Decision) TraceEvent {
	ev := TraceEvent{
		Type:     EventDecision,
		Run:      run,
		EntityID: d.EntityID,
		Outcome:  string(d.Outcome),
	}
	if d.Info != nil {
		ev.Rule = h.ruleNames[d.Info.RuleID]
		ev.Track = string(d.Info.Track)
		ev.RecordID = d.Info.RecordID
		ev.CompareDate = d.Info.CompareDate.Format(ir.DateLayout)
		ev.AlsoMark = d.Info.AlsoMark != nil
	}
	return ev
}

func checkExpect(i int, exp *RunExpect, res engine.RunResult, result *Result) {
	if exp == nil {
		return
	}
	check := func(name string, want *int, got int) {
		if want != nil && *want != got {
			result.AddError(fmt.Sprintf("runs[%d]: %s = %d, want %d", i, name, got, *want))
		}
	}
	check("scanned", exp.Scanned, res.Scanned)
	check("triggered", exp.Triggered, res.Triggered)
	check("failed", exp.Failed, res.Failed)
}
