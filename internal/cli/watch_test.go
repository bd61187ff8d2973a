package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockcfg/internal/store"
)

func TestWatchCommand_ReappliesOnChange(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "blockcfg.db")
	data, err := os.ReadFile(projectConfig)
	require.NoError(t, err)
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() {
		time.Sleep(500 * time.Millisecond)
		edited := strings.Replace(string(data), "name: Text", "name: Plain text", 1)
		_ = os.WriteFile(path, []byte(edited), 0644)
	}()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", path, "--db", db, "--debounce", "20ms"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Watching "+path)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	bt, err := st.BlockTypeByHandle(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Plain text", bt.Name)
}

func TestWatchCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "neo: {blockTypes: [\n")

	_, err := runCLI(t, "watch", path, "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigInvalid, errCode(err))
}
