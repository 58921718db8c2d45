// Package scanner enumerates a tenant's active profiles in bounded pages.
//
// Pages are keyset-paginated on the primary key (id > last seen id), never
// offset-based, so rows inserted during a scan neither shift nor repeat
// earlier pages.
package scanner

import (
	"context"
	"fmt"

	"github.com/roach88/renewal/internal/ir"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 500

// Population reads the profile projection.
type Population interface {
	ActiveCategories(ctx context.Context, tenantID int64, entityFilter *int64) ([]int, error)
	EntityPage(ctx context.Context, tenantID int64, category int, afterID int64, pageSize int, entityFilter *int64) ([]ir.Entity, error)
}

// Scanner walks active profiles category by category.
type Scanner struct {
	pop          Population
	tenantID     int64
	pageSize     int
	entityFilter *int64
}

// New creates a Scanner. entityFilter, when set, restricts every scan to
// that profile id.
func New(pop Population, tenantID int64, pageSize int, entityFilter *int64) (*Scanner, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("scanner: page size must be positive, got %d", pageSize)
	}
	return &Scanner{pop: pop, tenantID: tenantID, pageSize: pageSize, entityFilter: entityFilter}, nil
}

// ForEachCategory calls fn for each distinct active category in ascending
// order. It stops at the first error.
func (s *Scanner) ForEachCategory(ctx context.Context, fn func(category int) error) error {
	categories, err := s.pop.ActiveCategories(ctx, s.tenantID, s.entityFilter)
	if err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	for _, c := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Chunk calls fn with successive pages of the category's active profiles
// in id order. A page shorter than the page size ends the scan.
func (s *Scanner) Chunk(ctx context.Context, category int, fn func(page []ir.Entity) error) error {
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.pop.EntityPage(ctx, s.tenantID, category, afterID, s.pageSize, s.entityFilter)
		if err != nil {
			return fmt.Errorf("scanner: category %d after %d: %w", category, afterID, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < s.pageSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}
