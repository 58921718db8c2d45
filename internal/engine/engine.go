package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/resolver"
	"github.com/roach88/renewal/internal/scanner"
	"github.com/roach88/renewal/internal/store"
	"github.com/roach88/renewal/internal/tracks"
)

// DefaultActor is the audit actor recorded for scheduled runs.
const DefaultActor = "system"

// EventRenewalTriggered is the audit event code of a created renewal.
const EventRenewalTriggered = "RENEWAL_TRIGGERED"

// Ledger reads and writes the deduplication ledger.
type Ledger interface {
	tracks.Ledger
	MarkTriggered(ctx context.Context, tenantID, entityID int64, c ir.Comparison, runID string, at time.Time) (ir.MarkResult, error)
}

// TransactionSink creates renewal transactions and reports pending ones.
type TransactionSink interface {
	HasActiveTransaction(ctx context.Context, tenantID int64, txType string, entityID int64, entityType int) (bool, error)
	CreateTransaction(ctx context.Context, req ir.TransactionRequest) (int64, error)
}

// AtomicCommitter is implemented by sinks that can create the transaction
// and write its ledger marks in one atomic step.
type AtomicCommitter interface {
	CommitTrigger(ctx context.Context, req ir.TransactionRequest, marks []ir.Comparison) (int64, []ir.MarkResult, error)
}

// AuditSink receives audit log lines.
type AuditSink interface {
	AppendAudit(ctx context.Context, e ir.AuditEntry) error
}

// FeatureGate reports per-tenant feature flags.
type FeatureGate interface {
	FeatureEnabled(ctx context.Context, tenantID int64, feature string) (bool, error)
}

// RunRecorder stores run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec store.RunRecord) error
}

// Deps is everything a run reads from or writes to.
// Audit and Runs are optional.
type Deps struct {
	Rules      resolver.RuleSource
	Population scanner.Population
	Ledger     Ledger
	Evidence   tracks.Evidence
	Sink       TransactionSink
	Audit      AuditSink
	Features   FeatureGate
	Runs       RunRecorder
	Clock      tracks.Clock
	RunIDs     RunIDGenerator
	Logger     *slog.Logger
}

// StoreDeps wires every dependency to one SQLite store with the system
// clock and UUIDv7 run ids.
func StoreDeps(s *store.Store) Deps {
	return Deps{
		Rules:      s,
		Population: s,
		Ledger:     s,
		Evidence:   s,
		Sink:       s,
		Audit:      s,
		Features:   s,
		Runs:       s,
		Clock:      SystemClock{},
		RunIDs:     UUIDv7Generator{},
		Logger:     slog.Default(),
	}
}

func (d Deps) validate() error {
	switch {
	case d.Rules == nil:
		return errors.New("engine: Rules is required")
	case d.Population == nil:
		return errors.New("engine: Population is required")
	case d.Ledger == nil:
		return errors.New("engine: Ledger is required")
	case d.Evidence == nil:
		return errors.New("engine: Evidence is required")
	case d.Sink == nil:
		return errors.New("engine: Sink is required")
	case d.Features == nil:
		return errors.New("engine: Features is required")
	case d.Clock == nil:
		return errors.New("engine: Clock is required")
	case d.RunIDs == nil:
		return errors.New("engine: RunIDs is required")
	}
	return nil
}

// RunResult summarizes one run.
type RunResult struct {
	RunID        string `json:"run_id,omitempty"`
	Categories   int    `json:"categories"`
	Scanned      int    `json:"scanned"`
	Triggered    int    `json:"triggered"`
	Failed       int    `json:"failed"`
	MarkFailures int    `json:"mark_failures"`
}

// Hooks observe a run. They are supplied by tests and the scenario
// harness; production runs leave them empty.
type Hooks struct {
	// OnDecision is called once per scanned entity.
	OnDecision func(Decision)
}

// Engine evaluates renewal triggers.
type Engine struct {
	deps     Deps
	logger   *slog.Logger
	pageSize int
	actor    string
	atomic   bool
	hooks    Hooks
	running  sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the scan page size (default scanner.DefaultPageSize).
func WithPageSize(n int) Option {
	return func(e *Engine) {
		e.pageSize = n
	}
}

// WithActor sets the audit actor (default DefaultActor).
func WithActor(actor string) Option {
	return func(e *Engine) {
		e.actor = actor
	}
}

// WithAtomicCommit chooses between CommitTrigger and the sequential
// create-then-mark path. Atomic commit is on by default and only takes
// effect when the sink implements AtomicCommitter.
func WithAtomicCommit(on bool) Option {
	return func(e *Engine) {
		e.atomic = on
	}
}

// WithHooks installs observation hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// New creates an Engine. It fails when a required dependency is missing.
func New(deps Deps, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := &Engine{
		deps:     deps,
		logger:   deps.Logger,
		pageSize: scanner.DefaultPageSize,
		actor:    DefaultActor,
		atomic:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pageSize <= 0 {
		return nil, fmt.Errorf("engine: page size must be positive, got %d", e.pageSize)
	}
	return e, nil
}

// run holds the state of one Run call.
type run struct {
	tenantID int64
	id       string
	now      time.Time
	cache    *resolver.Cache
	tracks   *tracks.Set
	result   RunResult
}

// Run evaluates every active profile of the tenant, or only entityFilter
// when set, and returns the counts.
//
// A disabled feature gate returns a zero RunResult and no error.
// Per-entity "no decision" outcomes and failed transaction creation do not
// abort the run. Invalid input, store read failures and cancellation do.
func (e *Engine) Run(ctx context.Context, tenantID int64, entityFilter *int64) (RunResult, error) {
	if tenantID <= 0 {
		return RunResult{}, &RunError{Code: ErrCodeInvalidTenant, TenantID: tenantID, Err: ErrInvalidTenant}
	}
	if entityFilter != nil && *entityFilter <= 0 {
		return RunResult{}, &RunError{Code: ErrCodeInvalidArgument, TenantID: tenantID,
			Err: fmt.Errorf("%w: %d", ErrInvalidEntity, *entityFilter)}
	}
	if !e.running.TryLock() {
		return RunResult{}, &RunError{Code: ErrCodeBusy, TenantID: tenantID, Err: ErrRunInProgress}
	}
	defer e.running.Unlock()

	if err := ctx.Err(); err != nil {
		return RunResult{}, &RunError{Code: ErrCodeCanceled, TenantID: tenantID, Err: err}
	}
	enabled, err := e.deps.Features.FeatureEnabled(ctx, tenantID, store.FeatureRenewalTriggers)
	if err != nil {
		return RunResult{}, &RunError{Code: ErrCodeStore, TenantID: tenantID, Err: err}
	}
	if !enabled {
		e.logger.Info("renewal triggers disabled for tenant", "tenant_id", tenantID)
		return RunResult{}, nil
	}

	sc, err := scanner.New(e.deps.Population, tenantID, e.pageSize, entityFilter)
	if err != nil {
		return RunResult{}, &RunError{Code: ErrCodeInvalidArgument, TenantID: tenantID, Err: err}
	}

	r := &run{
		tenantID: tenantID,
		id:       e.deps.RunIDs.Generate(),
		now:      e.deps.Clock.Now(),
		cache:    resolver.NewCache(resolver.New(e.deps.Rules, tenantID)),
	}
	r.result.RunID = r.id
	r.tracks = tracks.NewSet(tracks.Env{
		TenantID: tenantID,
		Ledger:   e.deps.Ledger,
		Evidence: e.deps.Evidence,
		Clock:    runClock(r.now),
		Logger:   e.logger,
	})

	e.logger.Info("renewal run starting",
		"tenant_id", tenantID,
		"run_id", r.id,
		"page_size", e.pageSize,
	)

	err = sc.ForEachCategory(ctx, func(category int) error {
		r.cache.Reset()
		r.result.Categories++
		return sc.Chunk(ctx, category, func(page []ir.Entity) error {
			for _, ent := range page {
				if err := e.processEntity(ctx, r, ent); err != nil {
					return err
				}
			}
			return nil
		})
	})

	hits, misses := r.cache.Stats()
	if err != nil {
		code := ErrCodeStore
		switch {
		case errors.Is(err, resolver.ErrInvalidArgument):
			code = ErrCodeInvalidArgument
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			code = ErrCodeCanceled
		}
		e.logger.Error("renewal run aborted",
			"tenant_id", tenantID,
			"run_id", r.id,
			"code", code,
			"scanned", r.result.Scanned,
			"triggered", r.result.Triggered,
			"error", err,
		)
		return r.result, &RunError{Code: code, TenantID: tenantID, RunID: r.id, Err: err}
	}

	e.recordRun(ctx, r)
	e.logger.Info("renewal run finished",
		"tenant_id", tenantID,
		"run_id", r.id,
		"categories", r.result.Categories,
		"scanned", r.result.Scanned,
		"triggered", r.result.Triggered,
		"failed", r.result.Failed,
		"mark_failures", r.result.MarkFailures,
		"rule_cache_hits", hits,
		"rule_cache_misses", misses,
	)
	return r.result, nil
}

// recordRun stores the run summary. Failure is logged only.
func (e *Engine) recordRun(ctx context.Context, r *run) {
	if e.deps.Runs == nil {
		return
	}
	err := e.deps.Runs.RecordRun(ctx, store.RunRecord{
		RunID:      r.id,
		TenantID:   r.tenantID,
		StartedAt:  r.now,
		FinishedAt: e.deps.Clock.Now(),
		Stats: store.RunStats{
			Categories:   r.result.Categories,
			Scanned:      r.result.Scanned,
			Triggered:    r.result.Triggered,
			Failed:       r.result.Failed,
			MarkFailures: r.result.MarkFailures,
		},
	})
	if err != nil {
		e.logger.Error("failed to record run", "run_id", r.id, "error", err)
	}
}
