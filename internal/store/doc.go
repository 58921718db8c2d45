// Package store provides SQLite-backed storage for the renewal trigger engine.
//
// The store holds:
//   - Rules: administrator renewal policies with a uniqueness fingerprint
//   - Marks: the deduplication ledger (one row per comparison that triggered)
//   - Profiles, risk assessments, cases, form submissions and custom dates:
//     the tenant data evaluators read
//   - Renewal transactions, the audit log and tenant feature flags: the
//     sinks a run writes to
//   - Runs: one summary row per finished run
//
// # Critical Patterns
//
// Content-Addressed Ledger
//   - UNIQUE(hash) on renewal_marks, hash = ir.LedgerHash(...)
//   - MarkTriggered uses ON CONFLICT DO NOTHING; a collision is success
//
// Rule Uniqueness
//   - Partial UNIQUE index on fingerprint WHERE active = 1
//   - Deactivated rules keep their fingerprint and free it for new rules
//
// Parameterized Reads
//   - Every read is a queryir.Select compiled by querysql
//   - Values travel as ? placeholders, never as SQL text
//
// Atomic Trigger Commit
//   - CommitTrigger writes the transaction and its ledger marks in one
//     SQL transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
