// Package compiler turns administrator rule files written in CUE into
// ir.Rule values.
//
// A rule file declares rules under the top-level "rule" struct, keyed by
// rule name:
//
//	rule: kyc_annual: {
//		track:     "form_submission"
//		days:      365
//		form_ref:  "kyc"
//		risk_tier: 2
//	}
//
// Omitted scope fields are wildcards. An omitted rank is filled from the
// default specificity table when the rule is stored.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/renewal/internal/ir"
)

// ruleFields are the keys a rule struct may carry.
var ruleFields = map[string]bool{
	"track":             true,
	"days":              true,
	"risk_tier":         true,
	"entity_type":       true,
	"entity_category":   true,
	"rank":              true,
	"form_ref":          true,
	"date_modifier":     true,
	"modifier_absolute": true,
}

// CompileRule parses one rule struct. The rule name is the struct label.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	r, err := CompileRule(v.LookupPath(cue.ParsePath("rule.kyc_annual")))
func CompileRule(v cue.Value) (*ir.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "rule", Message: "must be a struct", Pos: v.Pos()}
	}

	r := &ir.Rule{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.Name = labels[len(labels)-1].String()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		if !ruleFields[iter.Label()] {
			return nil, &CompileError{
				Field:   iter.Label(),
				Message: "unknown rule field",
				Pos:     iter.Value().Pos(),
			}
		}
	}

	trackVal := v.LookupPath(cue.ParsePath("track"))
	if !trackVal.Exists() {
		return nil, &CompileError{Field: "track", Message: "track is required", Pos: v.Pos()}
	}
	name, err := trackVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	track, err := ir.ParseTrack(name)
	if err != nil {
		return nil, &CompileError{Field: "track", Message: err.Error(), Pos: trackVal.Pos()}
	}
	r.Track = track

	if r.Days, err = optionalInt(v, "days"); err != nil {
		return nil, err
	}
	if !r.Track.Evaluable() && r.Days != 0 {
		return nil, &CompileError{
			Field:   "days",
			Message: "exclude rules take no days",
			Pos:     v.LookupPath(cue.ParsePath("days")).Pos(),
		}
	}
	if r.RiskTier, err = optionalInt(v, "risk_tier"); err != nil {
		return nil, err
	}
	if r.EntityType, err = optionalInt(v, "entity_type"); err != nil {
		return nil, err
	}
	if r.EntityCategory, err = optionalInt(v, "entity_category"); err != nil {
		return nil, err
	}
	if r.Rank, err = optionalInt(v, "rank"); err != nil {
		return nil, err
	}
	modifier, err := optionalInt(v, "date_modifier")
	if err != nil {
		return nil, err
	}
	r.DateModifier = int64(modifier)

	if fv := v.LookupPath(cue.ParsePath("form_ref")); fv.Exists() {
		if r.FormRef, err = fv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if av := v.LookupPath(cue.ParsePath("modifier_absolute")); av.Exists() {
		if r.ModifierIsAbsolute, err = av.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return r, nil
}

// CompileRules compiles every rule under the top-level "rule" struct in
// declaration order. All compile errors are returned, not only the first.
func CompileRules(v cue.Value) ([]ir.Rule, []error) {
	rulesVal := v.LookupPath(cue.ParsePath("rule"))
	if !rulesVal.Exists() {
		return nil, nil
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		rules []ir.Rule
		errs  []error
	)
	for iter.Next() {
		r, err := CompileRule(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("rule.%s: %w", iter.Label(), err))
			continue
		}
		rules = append(rules, *r)
	}
	return rules, errs
}

// optionalInt reads an integer field, 0 when absent. Floats are rejected.
func optionalInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	switch fv.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{Field: field, Message: "must be an integer, not a float", Pos: fv.Pos()}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be an integer, got %v", fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, &CompileError{Field: field, Message: "must not be negative", Pos: fv.Pos()}
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
