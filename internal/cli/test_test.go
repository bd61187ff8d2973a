package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found.")
}

func TestTestCommandEmptyScenariosDir_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"../../testdata/scenarios", "--golden-dir", "../harness/testdata/golden"})

	require.NoError(t, cmd.Execute(), buf.String())
	assert.Contains(t, buf.String(), "✓ snapshot_reorder")
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"../../testdata/scenarios", "--golden-dir", "../harness/testdata/golden", "--filter", "nested_*"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "nested_blocks", resp.Data.Scenarios[0].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_expectation
description: expects the wrong sort order
setup:
  - action: config.apply
    args:
      fields:
        field-1: {handle: content}
      sites: [en]
flow:
  - invoke: blockTypes.save
    args: {field: content, handle: text, name: Text}
    expect:
      case: ok
      result: {sortOrder: 5}
assertions:
  - type: trace_count
    action: blockTypes.save
    count: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0644))

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeTestFailed, errCode(err))
	assert.Contains(t, buf.String(), "✗ wrong_expectation")
	assert.Contains(t, buf.String(), "1 failed")
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile("../../testdata/scenarios/snapshot_reorder.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_reorder.yaml"), data, 0644))

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--update"})
	require.NoError(t, cmd.Execute())

	written, err := os.ReadFile(filepath.Join(dir, "golden", "snapshot_reorder.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/snapshot_reorder.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// A second run compares against the file just written.
	cmd = NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("name: x"), 0644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = findScenarioFiles(dir, "a")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.yaml", filepath.Base(files[0]))

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
