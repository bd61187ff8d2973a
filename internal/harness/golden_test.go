package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace and final state with the golden file of the same name.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			require.True(t, result.Pass, "scenario errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	s := &Snapshot{
		ScenarioName: "empty",
		Trace: []TraceEvent{
			{Type: EventInvocation, Action: ActionVeto, Args: map[string]any{"handle": "x"}, Seq: 1},
			{Type: EventCompletion, Case: CaseOK, Seq: 2},
		},
	}
	m := s.toCanonicalMap()
	require.NotContains(t, m, "state")

	trace := m["trace"].([]any)
	completion := trace[1].(map[string]any)
	require.NotContains(t, completion, "result")
	require.NotContains(t, completion, "action")
	require.Equal(t, CaseOK, completion["case"])
}
