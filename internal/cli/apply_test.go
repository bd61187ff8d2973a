package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/store"
)

const projectConfig = "../../testdata/project.yaml"

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData unmarshals the data of a JSON success response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestApplyCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")

	out, err := runCLI(t, "apply", projectConfig, "--db", db, "--format", "json")
	require.NoError(t, err)

	var result ApplyResult
	decodeData(t, out, &result)
	assert.Equal(t, 3, result.BlockTypes)
	assert.Equal(t, 1, result.Groups)

	// Applying the same file again changes nothing.
	out, err = runCLI(t, "apply", projectConfig, "--db", db, "--format", "json")
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, 3, result.BlockTypes)
}

func TestApplyCommand_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")

	out, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Applied")
	assert.Contains(t, out, "3 block type(s), 1 group(s)")
}

func TestApplyCommand_InvalidConfig(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	path := writeConfig(t, "neo: {blockTypes: [\n")

	_, err := runCLI(t, "apply", path, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeConfigInvalid, errCode(err))
}

func TestApplyCommand_MissingField(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	path := writeConfig(t, `fields:
  field-1: {handle: content}
sites: [en]
neo:
  blockTypes:
    bt-dangling: {field: field-9, name: Dangling, handle: dangling}
`)

	_, err := runCLI(t, "apply", path, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeReferentialIntegrity, errCode(err))
}

func TestApplyCommand_MissingFile(t *testing.T) {
	_, err := runCLI(t, "apply", "/nonexistent/project.yaml", "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigInvalid, errCode(err))
}

func TestListCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	_, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)

	out, err := runCLI(t, "list", "content", "--db", db, "--format", "json")
	require.NoError(t, err)

	var result ListResult
	decodeData(t, out, &result)
	assert.Equal(t, "content", result.Field)

	handles := make([]string, 0, len(result.BlockTypes))
	for _, bt := range result.BlockTypes {
		handles = append(handles, bt.Handle)
	}
	assert.Equal(t, []string{"text", "columns", "column"}, handles)
	assert.Equal(t, "Layout", result.BlockTypes[1].Group)
	assert.False(t, result.BlockTypes[2].TopLevel)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, "Layout", result.Groups[0].Name)
	assert.Equal(t, 2, result.Groups[0].SortOrder)
	assert.True(t, result.Groups[0].ShowDropdown)
}

func TestListCommand_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	_, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)

	out, err := runCLI(t, "list", "content", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Field content")
	assert.Contains(t, out, "Columns [columns] in Layout")
	assert.Contains(t, out, "(child only)")
}

func TestListCommand_UnknownField(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")

	_, err := runCLI(t, "list", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeNotFound, errCode(err))
}

func TestTreeCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	_, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)

	createTree(t, db, 7)

	out, err := runCLI(t, "tree", "content", "--owner", "7", "--site", "en", "--db", db, "--format", "json")
	require.NoError(t, err)

	var result TreeResult
	decodeData(t, out, &result)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "columns", result.Blocks[0].Type)
	assert.Equal(t, "text", result.Blocks[1].Type)

	require.Len(t, result.Blocks[0].Children, 1)
	column := result.Blocks[0].Children[0]
	assert.Equal(t, "column", column.Type)
	assert.Equal(t, 2, column.Level)
	require.Len(t, column.Children, 1)
	assert.Equal(t, "text", column.Children[0].Type)
	assert.Equal(t, 3, column.Children[0].Level)
}

func TestTreeCommand_OtherOwnerIsEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	_, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)
	createTree(t, db, 7)

	out, err := runCLI(t, "tree", "content", "--owner", "8", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "(no blocks)")
}

func TestTreeCommand_UnknownSite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "blockcfg.db")
	_, err := runCLI(t, "apply", projectConfig, "--db", db)
	require.NoError(t, err)

	_, err = runCLI(t, "tree", "content", "--owner", "7", "--site", "fr", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, errCode(err))
}

func TestTreeCommand_RequiresOwner(t *testing.T) {
	_, err := runCLI(t, "tree", "content", "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"owner" not set`)
}

// createTree stores columns > column > text followed by a top-level text
// block for owner in site en.
func createTree(t *testing.T, db string, owner int64) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	siteID, ok, err := st.SiteIDByHandle(ctx, "en")
	require.NoError(t, err)
	require.True(t, ok)

	typeOf := func(handle string) *ir.BlockType {
		bt, err := st.BlockTypeByHandle(ctx, handle)
		require.NoError(t, err)
		return bt
	}
	create := func(bt *ir.BlockType, parent *ir.Block, sortOrder int) *ir.Block {
		b := &ir.Block{OwnerID: owner, FieldID: bt.FieldID, TypeID: bt.ID, SiteID: siteID, Level: 1, SortOrder: sortOrder}
		if parent != nil {
			b.ParentID = &parent.ID
			b.Level = parent.Level + 1
		}
		require.NoError(t, st.CreateBlock(ctx, b))
		return b
	}

	columns := create(typeOf("columns"), nil, 1)
	column := create(typeOf("column"), columns, 1)
	create(typeOf("text"), column, 1)
	create(typeOf("text"), nil, 2)
}
