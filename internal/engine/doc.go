// Package engine runs renewal trigger evaluation for one tenant.
//
// A run walks the tenant's active profiles category by category in bounded
// pages, resolves the governing rules of each profile (cached per profile
// group within a category), evaluates the date tracks in precedence order
// and, on the first match, creates a renewal transaction and records the
// comparison in the deduplication ledger.
//
// ARCHITECTURE:
//
// Run Flow:
//  1. Feature gate: a disabled tenant returns an empty RunResult
//  2. scanner.ForEachCategory → scanner.Chunk (keyset pages)
//  3. resolver.Cache.Rules per entity
//  4. Skip: no rules, exclude-only, or an active renewal transaction
//  5. tracks.Set.Evaluate (first matching track wins)
//  6. CommitTrigger (transaction + ledger marks in one SQL transaction)
//  7. Audit append (best-effort)
//
// Runs are synchronous and single-threaded. Everything the engine touches
// arrives through Deps; there is no package-level state.
//
// IDEMPOTENCY:
//
// Re-running over unchanged data creates nothing new. Two independent guards
// ensure it: the deduplication ledger (a marked comparison never triggers
// again) and the active-transaction check (a pending renewal blocks another).
//
// CONCURRENCY:
//
// One Engine refuses overlapping Run calls. Separate processes running the
// same tenant at once are not coordinated; deployments run a single
// scheduler per database.
package engine
