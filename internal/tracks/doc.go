// Package tracks evaluates resolved renewal rules against one entity.
//
// Each evaluable track has an Evaluator:
//
//   - status_change: entity status-change date + days
//   - form_submission: latest submitted form instance + days
//   - investigation: latest completed investigation case + days
//   - custom_date: custom date attribute only
//
// Every track except custom_date also honours an optional date modifier,
// a custom date attribute used verbatim (absolute) or offset by days
// (relative). When both the modifier path and the normal path qualify, the
// modifier comparison wins and the normal comparison is returned as
// AlsoMark so it cannot trigger on its own in a later run.
//
// A comparison already present in the deduplication ledger never triggers.
// Set.Evaluate walks rules in resolved order and stops at the first rule
// that yields a comparison: an entity triggers at most one renewal per run.
package tracks
