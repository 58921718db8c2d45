// Package resolver selects the renewal rules that govern an entity.
//
// Resolution runs in three steps:
//
//  1. Fetch candidates: rules whose category, type and risk tier each match
//     the entity exactly or by wildcard (store.CandidateRules).
//  2. Sort: track precedence, then rank ascending, then form-specific rules
//     before "any form" rules.
//  3. Reduce: the most specific rule wins each track. Multi-valued tracks
//     keep further rules that share the winner's exact specificity tuple.
//
// # Exclude Lock
//
// Exclude has the lowest precedence, so the most specific exclude rule is
// seen first. Its rank becomes a ceiling: rules on every other track are
// kept only when strictly more specific. A broad exclude suppresses broad
// rules while a narrowly scoped rule still applies underneath it.
//
// Sort and Reduce are pure functions over in-memory slices so the algorithm
// is testable without a database.
package resolver
