package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// ErrDuplicateRule is returned when an active rule with the same
// fingerprint already exists.
var ErrDuplicateRule = errors.New("duplicate active rule")

var ruleColumns = []queryir.Column{
	{Field: "id"}, {Field: "tenant_id"}, {Field: "name"}, {Field: "track"}, {Field: "days"},
	{Field: "date_modifier"}, {Field: "modifier_is_absolute"}, {Field: "form_ref"},
	{Field: "risk_tier"}, {Field: "entity_type"}, {Field: "entity_category"},
	{Field: "rank"}, {Field: "active"}, {Field: "fingerprint"},
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(r ir.Rule) error {
	if r.TenantID <= 0 {
		return fmt.Errorf("rule %q: tenant id must be positive", r.Name)
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Track.Valid() {
		return fmt.Errorf("rule %q: unknown track %q", r.Name, r.Track)
	}
	if r.Days < 0 {
		return fmt.Errorf("rule %q: days must not be negative", r.Name)
	}
	if r.RiskTier < 0 || r.EntityType < 0 || r.EntityCategory < 0 {
		return fmt.Errorf("rule %q: risk tier, entity type and category must not be negative", r.Name)
	}
	if r.FormRef != "" && r.Track != ir.TrackFormSubmission {
		return fmt.Errorf("rule %q: form_ref is only valid on %s rules", r.Name, ir.TrackFormSubmission)
	}
	if r.DateModifier < 0 {
		return fmt.Errorf("rule %q: date modifier must not be negative", r.Name)
	}
	if r.Track == ir.TrackCustomDate && !r.HasModifier() {
		return fmt.Errorf("rule %q: %s rules need a date modifier", r.Name, ir.TrackCustomDate)
	}
	if r.ModifierIsAbsolute && !r.HasModifier() {
		return fmt.Errorf("rule %q: modifier_absolute set without a date modifier", r.Name)
	}
	if r.Rank < 0 {
		return fmt.Errorf("rule %q: rank must not be negative", r.Name)
	}
	return nil
}

// InsertRule stores a new active rule and returns it with its id, rank and
// fingerprint filled in. A zero rank is replaced by ir.DefaultRank.
//
// Returns ErrDuplicateRule if an active rule with the same fingerprint exists.
func (s *Store) InsertRule(ctx context.Context, r ir.Rule, at time.Time) (ir.Rule, error) {
	if err := ValidateRule(r); err != nil {
		return ir.Rule{}, err
	}
	if r.Rank == 0 {
		r.Rank = ir.DefaultRank(r.RiskTier, r.EntityType, r.EntityCategory)
	}
	fp, err := ir.RuleFingerprint(r)
	if err != nil {
		return ir.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	r.Fingerprint = fp
	r.Active = true

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO renewal_rules
		(tenant_id, name, track, days, date_modifier, modifier_is_absolute, form_ref,
		 risk_tier, entity_type, entity_category, rank, active, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		r.TenantID, r.Name, string(r.Track), r.Days, r.DateModifier, boolToInt(r.ModifierIsAbsolute),
		r.FormRef, r.RiskTier, r.EntityType, r.EntityCategory, r.Rank, r.Fingerprint,
		ir.FormatStamp(at),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ir.Rule{}, fmt.Errorf("insert rule %q: %w", r.Name, ErrDuplicateRule)
		}
		return ir.Rule{}, fmt.Errorf("insert rule %q: %w", r.Name, err)
	}
	r.ID, err = result.LastInsertId()
	if err != nil {
		return ir.Rule{}, fmt.Errorf("insert rule: last insert id: %w", err)
	}
	return r, nil
}

// DeactivateRule soft-deletes a rule. Deactivating an inactive rule is a no-op.
func (s *Store) DeactivateRule(ctx context.Context, tenantID, ruleID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE renewal_rules SET active = 0 WHERE tenant_id = ? AND id = ?
	`, tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("deactivate rule %d: %w", ruleID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate rule %d: rows affected: %w", ruleID, err)
	}
	if n == 0 {
		return fmt.Errorf("deactivate rule %d: %w", ruleID, ErrNotFound)
	}
	return nil
}

// GetRule reads one rule of a tenant, active or not.
func (s *Store) GetRule(ctx context.Context, tenantID, ruleID int64) (ir.Rule, error) {
	rules, err := s.readRules(ctx, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
		queryir.Equals{Field: "id", Value: ir.IRInt(ruleID)},
	}})
	if err != nil {
		return ir.Rule{}, err
	}
	if len(rules) == 0 {
		return ir.Rule{}, fmt.Errorf("rule %d: %w", ruleID, ErrNotFound)
	}
	return rules[0], nil
}

// ListRules returns a tenant's rules ordered by id.
func (s *Store) ListRules(ctx context.Context, tenantID int64, includeInactive bool) ([]ir.Rule, error) {
	preds := []queryir.Predicate{queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)}}
	if !includeInactive {
		preds = append(preds, queryir.Equals{Field: "active", Value: ir.IRBool(true)})
	}
	return s.readRules(ctx, queryir.And{Predicates: preds})
}

// CandidateRules returns every active rule of the tenant that could govern
// an entity of the given profile group: category and type match exactly or
// by wildcard. Rated entities also match wildcard-risk rules; unrated
// entities match wildcard-risk rules only.
//
// Rows come back in id order. Specificity ordering is the resolver's job.
func (s *Store) CandidateRules(ctx context.Context, tenantID int64, g ir.ProfileGroup) ([]ir.Rule, error) {
	var risk queryir.Predicate = queryir.Equals{Field: "risk_tier", Value: ir.IRInt(ir.Wildcard)}
	if g.RiskTier != ir.Wildcard {
		risk = queryir.In{Field: "risk_tier", Values: queryir.Ints(g.RiskTier, ir.Wildcard)}
	}
	return s.readRules(ctx, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "tenant_id", Value: ir.IRInt(tenantID)},
		queryir.Equals{Field: "active", Value: ir.IRBool(true)},
		queryir.In{Field: "entity_category", Values: queryir.Ints(g.EntityCategory, ir.Wildcard)},
		queryir.In{Field: "entity_type", Values: queryir.Ints(g.EntityType, ir.Wildcard)},
		risk,
	}})
}

func (s *Store) readRules(ctx context.Context, filter queryir.Predicate) ([]ir.Rule, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From:    "renewal_rules",
		Columns: ruleColumns,
		Filter:  filter,
	})
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	defer rows.Close()

	var rules []ir.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return rules, nil
}

func scanRule(rows *sql.Rows) (ir.Rule, error) {
	var (
		r        ir.Rule
		track    string
		absolute int
		active   int
	)
	err := rows.Scan(
		&r.ID, &r.TenantID, &r.Name, &track, &r.Days,
		&r.DateModifier, &absolute, &r.FormRef,
		&r.RiskTier, &r.EntityType, &r.EntityCategory,
		&r.Rank, &active, &r.Fingerprint,
	)
	if err != nil {
		return ir.Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.Track = ir.Track(track)
	r.ModifierIsAbsolute = absolute != 0
	r.Active = active != 0
	return r, nil
}
