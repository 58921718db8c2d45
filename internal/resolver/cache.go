package resolver

import (
	"context"

	"github.com/roach88/renewal/internal/ir"
)

// Cache memoizes resolved rule sets per profile group for the duration of
// one category scan. Call Reset before scanning the next category.
//
// Cache is not safe for concurrent use.
type Cache struct {
	resolver *Resolver
	sets     map[ir.ProfileGroup][]ir.Rule
	hits     int
	misses   int
}

// NewCache wraps r with an empty cache.
func NewCache(r *Resolver) *Cache {
	return &Cache{resolver: r, sets: make(map[ir.ProfileGroup][]ir.Rule)}
}

// Rules returns the governing rules for e, resolving on first use of its
// profile group. Errors are not cached.
func (c *Cache) Rules(ctx context.Context, e ir.Entity) ([]ir.Rule, error) {
	g := e.Group()
	if rules, ok := c.sets[g]; ok {
		c.hits++
		return rules, nil
	}
	c.misses++
	rules, err := c.resolver.Resolve(ctx, g.RiskTier, g.EntityType, g.EntityCategory)
	if err != nil {
		return nil, err
	}
	c.sets[g] = rules
	return rules, nil
}

// Reset drops every cached rule set.
func (c *Cache) Reset() {
	clear(c.sets)
}

// Stats returns the hit and miss counts since the cache was created.
func (c *Cache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
