// Package ir defines the domain types shared by every renewal component.
//
// The package holds:
//   - The date-track catalog (Track) with its fixed precedence order
//   - Rule, Entity and ProfileGroup, the inputs to rule resolution
//   - Comparison and ComparisonInfo, the typed output of the track evaluators
//   - LedgerEntry, one row of the deduplication ledger
//   - Content-addressed hashing (RFC 8785 canonical JSON + SHA-256 with
//     domain separation) for ledger keys and rule fingerprints
//
// # Critical Patterns
//
// Content-Addressed Ledger Keys
//   - LedgerHash covers (tenant, entity, record, compare date, track)
//   - The same tuple always produces the same 32-byte key
//
// Day Granularity
//   - Trigger arithmetic compares UTC calendar days, never wall-clock instants
//   - Ledger dates are stored as UTC RFC 3339 stamps so hashes are stable
//
// No Floats
//   - Canonical values are strings, integers and booleans only
package ir
