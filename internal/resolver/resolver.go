package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/renewal/internal/ir"
)

// ErrInvalidArgument is returned when an entity's type or category is not
// positive. This is a configuration error, never a "no rules" outcome.
var ErrInvalidArgument = errors.New("invalid argument")

// RuleSource returns candidate rules for a profile group.
type RuleSource interface {
	CandidateRules(ctx context.Context, tenantID int64, g ir.ProfileGroup) ([]ir.Rule, error)
}

// Resolver resolves governing rules for one tenant.
type Resolver struct {
	src      RuleSource
	tenantID int64
}

// New creates a Resolver for tenantID.
func New(src RuleSource, tenantID int64) *Resolver {
	return &Resolver{src: src, tenantID: tenantID}
}

// Resolve returns the ordered rules governing an entity with the given
// risk tier, type and category. An empty result means no rule applies.
func (r *Resolver) Resolve(ctx context.Context, riskTier, entityType, entityCategory int) ([]ir.Rule, error) {
	if entityType <= 0 {
		return nil, fmt.Errorf("resolve: entity type %d: %w", entityType, ErrInvalidArgument)
	}
	if entityCategory <= 0 {
		return nil, fmt.Errorf("resolve: entity category %d: %w", entityCategory, ErrInvalidArgument)
	}
	if riskTier < 0 {
		return nil, fmt.Errorf("resolve: risk tier %d: %w", riskTier, ErrInvalidArgument)
	}

	g := ir.ProfileGroup{RiskTier: riskTier, EntityType: entityType, EntityCategory: entityCategory}
	candidates, err := r.src.CandidateRules(ctx, r.tenantID, g)
	if err != nil {
		return nil, fmt.Errorf("resolve %+v: %w", g, err)
	}
	return Reduce(Sort(candidates)), nil
}

// Sort returns a copy of rules in resolution order: track precedence, rank
// ascending, pinned dimensions before wildcards, form-specific before any
// form, then id.
func Sort(rules []ir.Rule) []ir.Rule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b ir.Rule) int {
		if c := cmp.Compare(a.Track.Precedence(), b.Track.Precedence()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		da := ir.DefaultRank(a.RiskTier, a.EntityType, a.EntityCategory)
		db := ir.DefaultRank(b.RiskTier, b.EntityType, b.EntityCategory)
		if c := cmp.Compare(da, db); c != 0 {
			return c
		}
		if c := cmp.Compare(b.FormRef, a.FormRef); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Reduce applies most-specific-wins to a sorted rule list.
//
// For each track the first rule is its anchor. Later rules of a
// multi-valued track are kept only when they share the anchor's profile
// group. Once an exclude rule is kept its rank locks every later rule: a
// rule survives only when its rank is strictly lower.
func Reduce(sorted []ir.Rule) []ir.Rule {
	excludeRank := math.MaxInt
	anchors := make(map[ir.Track]ir.ProfileGroup)
	var out []ir.Rule

	for _, r := range sorted {
		anchor, seen := anchors[r.Track]
		switch {
		case seen:
			if !r.Track.MultiValued() || r.Group() != anchor {
				continue
			}
			if r.Rank >= excludeRank {
				continue
			}
		case r.IsExclude():
			excludeRank = r.Rank
		case r.Rank >= excludeRank:
			continue
		}
		if !seen {
			anchors[r.Track] = r.Group()
		}
		out = append(out, r)
	}
	return out
}

// ExcludeOnly reports whether rules consist of exclude rules alone.
func ExcludeOnly(rules []ir.Rule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, r := range rules {
		if !r.IsExclude() {
			return false
		}
	}
	return true
}
