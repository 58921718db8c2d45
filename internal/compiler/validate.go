package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/renewal/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrRuleNameEmpty        = "E101" // rule name is required
	ErrUnknownTrack         = "E102" // track not in the catalog
	ErrNegativeValue        = "E103" // days, scope or rank below zero
	ErrFormRefTrack         = "E104" // form_ref on a non form_submission rule
	ErrModifierRequired     = "E105" // custom_date without date_modifier
	ErrAbsoluteNoModifier   = "E106" // modifier_absolute without date_modifier
	ErrExcludeHasDays       = "E107" // exclude rule with days or a modifier
	ErrDuplicateRuleName    = "E108" // two rules share a name
	ErrDuplicateFingerprint = "E109" // two rules share scope and track
)

// ValidationError represents a rule validation error.
type ValidationError struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] rule %s: %s: %s", e.Code, e.Rule, e.Field, e.Message)
}

// Validate checks one compiled rule. Returns all errors found (does not
// fail-fast).
func Validate(r ir.Rule) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Rule:    r.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(r.Name) == "" {
		add("name", ErrRuleNameEmpty, "rule name is required")
	}
	if !r.Track.Valid() {
		add("track", ErrUnknownTrack, "unknown track %q", r.Track)
	}
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"days", int64(r.Days)},
		{"risk_tier", int64(r.RiskTier)},
		{"entity_type", int64(r.EntityType)},
		{"entity_category", int64(r.EntityCategory)},
		{"rank", int64(r.Rank)},
		{"date_modifier", r.DateModifier},
	} {
		if f.value < 0 {
			add(f.name, ErrNegativeValue, "must not be negative, got %d", f.value)
		}
	}
	if r.FormRef != "" && r.Track != ir.TrackFormSubmission {
		add("form_ref", ErrFormRefTrack, "only valid on %s rules", ir.TrackFormSubmission)
	}
	if r.Track == ir.TrackCustomDate && !r.HasModifier() {
		add("date_modifier", ErrModifierRequired, "%s rules need a date modifier", ir.TrackCustomDate)
	}
	if r.ModifierIsAbsolute && !r.HasModifier() {
		add("modifier_absolute", ErrAbsoluteNoModifier, "set without a date modifier")
	}
	if r.IsExclude() && (r.Days != 0 || r.HasModifier()) {
		add("days", ErrExcludeHasDays, "exclude rules take no days or date modifier")
	}
	return errs
}

// ValidateSet validates every rule and reports rules of the same file that
// share a name or would collide on the active-rule fingerprint.
func ValidateSet(rules []ir.Rule) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool, len(rules))
	prints := make(map[string]string, len(rules))
	for _, r := range rules {
		errs = append(errs, Validate(r)...)
		if names[r.Name] {
			errs = append(errs, ValidationError{
				Rule: r.Name, Field: "name", Code: ErrDuplicateRuleName,
				Message: "rule name declared more than once",
			})
		}
		names[r.Name] = true

		fp, err := ir.RuleFingerprint(r)
		if err != nil {
			continue
		}
		if other, ok := prints[fp]; ok {
			errs = append(errs, ValidationError{
				Rule: r.Name, Field: "track", Code: ErrDuplicateFingerprint,
				Message: fmt.Sprintf("same track and scope as rule %s", other),
			})
			continue
		}
		prints[fp] = r.Name
	}
	return errs
}
