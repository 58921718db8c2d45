package tracks

import (
	"context"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/store"
)

// StatusChange compares against the entity's status-change timestamp. The
// comparison record is the entity itself.
type StatusChange struct{}

func (StatusChange) Track() ir.Track { return ir.TrackStatusChange }

func (StatusChange) Evaluate(ctx context.Context, env Env, e ir.Entity, r ir.Rule, _ *Scope) (*ir.ComparisonInfo, error) {
	modifier, err := dateModifierTrigger(ctx, env, e, r)
	if err != nil {
		return nil, err
	}
	var normal *ir.Comparison
	if e.StatusChangedAt != nil {
		c := ir.Comparison{RecordID: e.ID, CompareDate: e.StatusChangedAt.UTC(), Track: ir.TrackStatusChange}
		if normal, err = normalComparison(ctx, env, e, r, c); err != nil {
			return nil, err
		}
	}
	return combine(r, modifier, normal), nil
}

// FormSubmission compares against the latest submitted form instance.
//
// A form-specific rule looks at its form only. An "any form" rule looks at
// every form not claimed by a form-specific rule evaluated before it. Each
// form ref is evaluated at most once per entity.
type FormSubmission struct{}

func (FormSubmission) Track() ir.Track { return ir.TrackFormSubmission }

func (FormSubmission) Evaluate(ctx context.Context, env Env, e ir.Entity, r ir.Rule, scope *Scope) (*ir.ComparisonInfo, error) {
	var fq store.FormQuery
	if r.FormRef != "" {
		if scope.formsTested[r.FormRef] {
			return nil, nil
		}
		scope.formsTested[r.FormRef] = true
		scope.specificForms = append(scope.specificForms, r.FormRef)
		fq.FormRef = r.FormRef
	} else {
		fq.ExcludeRefs = scope.specificForms
	}

	modifier, err := dateModifierTrigger(ctx, env, e, r)
	if err != nil {
		return nil, err
	}
	sub, err := env.Evidence.LatestFormSubmission(ctx, env.TenantID, e.ID, fq)
	if err != nil {
		return nil, err
	}
	var normal *ir.Comparison
	if sub != nil {
		c := ir.Comparison{RecordID: sub.ID, CompareDate: sub.SubmittedAt, Track: ir.TrackFormSubmission}
		if normal, err = normalComparison(ctx, env, e, r, c); err != nil {
			return nil, err
		}
	}
	return combine(r, modifier, normal), nil
}

// Investigation compares against the latest completed investigation case.
type Investigation struct{}

func (Investigation) Track() ir.Track { return ir.TrackInvestigation }

func (Investigation) Evaluate(ctx context.Context, env Env, e ir.Entity, r ir.Rule, _ *Scope) (*ir.ComparisonInfo, error) {
	modifier, err := dateModifierTrigger(ctx, env, e, r)
	if err != nil {
		return nil, err
	}
	rec, err := env.Evidence.LatestCompletedInvestigation(ctx, env.TenantID, e.ID)
	if err != nil {
		return nil, err
	}
	var normal *ir.Comparison
	if rec != nil {
		c := ir.Comparison{RecordID: rec.ID, CompareDate: rec.CompletedAt, Track: ir.TrackInvestigation}
		if normal, err = normalComparison(ctx, env, e, r, c); err != nil {
			return nil, err
		}
	}
	return combine(r, modifier, normal), nil
}

// CustomDate triggers from the date modifier alone.
type CustomDate struct{}

func (CustomDate) Track() ir.Track { return ir.TrackCustomDate }

func (CustomDate) Evaluate(ctx context.Context, env Env, e ir.Entity, r ir.Rule, _ *Scope) (*ir.ComparisonInfo, error) {
	modifier, err := dateModifierTrigger(ctx, env, e, r)
	if err != nil {
		return nil, err
	}
	return combine(r, modifier, nil), nil
}
