// Package harness runs renewal scenarios described in YAML against a fresh
// in-memory store and the real engine.
//
// A scenario seeds tenant data, runs the engine one or more times at fixed
// clock instants and asserts on the per-entity decisions and the final
// store contents:
//
//	name: form_specific_rule_wins
//	description: "A form-specific rule is evaluated before the any-form rule"
//	rules:
//	  - name: kyc_yearly
//	    track: form_submission
//	    days: 365
//	    form_ref: kyc
//	profiles:
//	  - id: 10
//	    type: 5
//	    category: 2
//	    cases:
//	      - type: questionnaire
//	        stage: completed
//	        forms:
//	          - ref: kyc
//	            submitted_at: 2023-01-01
//	runs:
//	  - at: 2024-01-02
//	    expect: { scanned: 1, triggered: 1 }
//	assertions:
//	  - type: decision
//	    run: 0
//	    entity: 10
//	    outcome: triggered
//	    rule: kyc_yearly
//	  - type: transaction_count
//	    count: 1
//
// Rules come from the inline list or from a CUE rules_file resolved against
// the scenario's directory. Each run gets the run id "run-<n>" (1-based),
// so traces are deterministic and can be compared with golden files.
//
// # Assertion Types
//
//   - decision: the outcome of one entity in one run, optionally with the
//     matched rule name and track
//   - transaction_count: renewal transactions in the store, optionally for
//     one entity
//   - mark_count: ledger marks for one entity
//   - audit_count: audit lines for the tenant
package harness
