package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/blockcfg/internal/ir"
)

// Snapshot is what golden files record for a scenario run.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        map[string]any
}

// toCanonicalMap converts the snapshot to plain values, since
// ir.MarshalCanonical only accepts generic maps, slices and scalars.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Action != "" {
			m["action"] = event.Action
		}
		if event.Args != nil {
			m["args"] = event.Args
		}
		if event.Case != "" {
			m["case"] = event.Case
		}
		if event.Result != nil {
			m["result"] = event.Result
		}
		trace[i] = m
	}

	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.State != nil {
		out["state"] = s.State
	}
	return out
}

// MarshalSnapshot returns the canonical JSON golden files hold for a run.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden runs the scenario and compares its trace and final state
// with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
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

// AssertGolden compares an existing result with the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
