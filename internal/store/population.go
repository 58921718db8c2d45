package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// activeProfiles filters the profiles a run considers. entityFilter
// restricts the population to one profile.
func activeProfiles(alias string, tenantID int64, entityFilter *int64) []queryir.Predicate {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	preds := []queryir.Predicate{
		queryir.Equals{Field: col("tenant_id"), Value: ir.IRInt(tenantID)},
		queryir.Equals{Field: col("active"), Value: ir.IRBool(true)},
		queryir.IsNull{Field: col("deleted_at")},
	}
	if entityFilter != nil {
		preds = append(preds, queryir.Equals{Field: col("id"), Value: ir.IRInt(*entityFilter)})
	}
	return preds
}

// ActiveCategories returns the distinct categories among active profiles
// of the tenant in ascending order.
func (s *Store) ActiveCategories(ctx context.Context, tenantID int64, entityFilter *int64) ([]int, error) {
	rows, err := s.query(ctx, s.db, queryir.Select{
		From:     "profiles",
		Columns:  []queryir.Column{{Field: "entity_category"}},
		Filter:   queryir.And{Predicates: activeProfiles("", tenantID, entityFilter)},
		Distinct: true,
	})
	if err != nil {
		return nil, fmt.Errorf("active categories: %w", err)
	}
	defer rows.Close()

	var categories []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("active categories: scan: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active categories: %w", err)
	}
	return categories, nil
}

// EntityPage returns up to pageSize active profiles of the category whose id
// is greater than afterID, in id order. The risk tier is the tier of the
// latest assessment, 0 when the profile was never assessed.
func (s *Store) EntityPage(ctx context.Context, tenantID int64, category int, afterID int64, pageSize int, entityFilter *int64) ([]ir.Entity, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("entity page: page size must be positive, got %d", pageSize)
	}

	latestRisk := queryir.Select{
		From:    "risk_assessments",
		Alias:   "ra",
		Columns: []queryir.Column{{Field: "ra.risk_tier"}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.FieldEquals{Left: "ra.profile_id", Right: "p.id"},
			queryir.Equals{Field: "ra.tenant_id", Value: ir.IRInt(tenantID)},
		}},
		OrderBy: []queryir.Order{{Field: "ra.assessed_at", Desc: true}, {Field: "ra.id", Desc: true}},
		Limit:   1,
	}

	preds := activeProfiles("p", tenantID, entityFilter)
	preds = append(preds,
		queryir.Equals{Field: "p.entity_category", Value: ir.IRInt(int64(category))},
		queryir.Compare{Field: "p.id", Op: queryir.OpGreater, Value: ir.IRInt(afterID)},
	)

	rows, err := s.query(ctx, s.db, queryir.Select{
		From:  "profiles",
		Alias: "p",
		Columns: []queryir.Column{
			{Field: "p.id"},
			{Field: "p.entity_type"},
			{Field: "p.entity_category"},
			{Sub: &latestRisk, As: "risk_tier"},
			{Field: "p.status_changed_at"},
		},
		Filter: queryir.And{Predicates: preds},
		Limit:  pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("entity page: %w", err)
	}
	defer rows.Close()

	page := make([]ir.Entity, 0, pageSize)
	for rows.Next() {
		var (
			e       ir.Entity
			risk    sql.NullInt64
			changed sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityCategory, &risk, &changed); err != nil {
			return nil, fmt.Errorf("entity page: scan: %w", err)
		}
		e.RiskTier = int(risk.Int64)
		if e.StatusChangedAt, err = parseStamp(changed); err != nil {
			return nil, fmt.Errorf("entity page: profile %d status date: %w", e.ID, err)
		}
		page = append(page, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entity page: %w", err)
	}
	return page, nil
}
