package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/renewal/internal/ir"
)

// snapshot converts a trace to an IR value for canonical JSON. Zero-valued
// optional fields are omitted.
func snapshot(name string, trace []TraceEvent) ir.IRObject {
	events := make(ir.IRArray, len(trace))
	for i, ev := range trace {
		obj := ir.IRObject{
			"type": ir.IRString(ev.Type),
			"run":  ir.IRInt(ev.Run),
		}
		putString(obj, "run_id", ev.RunID)
		putString(obj, "outcome", ev.Outcome)
		putString(obj, "rule", ev.Rule)
		putString(obj, "track", ev.Track)
		putString(obj, "compare_date", ev.CompareDate)
		putInt(obj, "entity_id", ev.EntityID)
		putInt(obj, "record_id", ev.RecordID)
		if ev.AlsoMark {
			obj["also_mark"] = ir.IRBool(true)
		}
		if ev.Type == EventRun {
			obj["scanned"] = ir.IRInt(ev.Scanned)
			obj["triggered"] = ir.IRInt(ev.Triggered)
			obj["failed"] = ir.IRInt(ev.Failed)
		}
		events[i] = obj
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(name),
		"trace":         events,
	}
}

func putString(obj ir.IRObject, key, v string) {
	if v != "" {
		obj[key] = ir.IRString(v)
	}
}

func putInt(obj ir.IRObject, key string, v int64) {
	if v != 0 {
		obj[key] = ir.IRInt(v)
	}
}

// TraceJSON renders the trace as canonical JSON.
func TraceJSON(name string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(snapshot(name, result.Trace))
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass; golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
