package projectconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
fields:
  field-1:
    handle: content
sites: [default]
neo:
  blockTypeGroups:
    group-1:
      field: field-1
      name: Media
      alwaysShowDropdown: ~
  blockTypes:
    bt-1:
      field: field-1
      name: Text
      handle: text
      childBlocks: "*"
      minBlocks: 0
      icon:
        volume: icons
        filename: text.svg
      fieldLayouts:
        layout-1:
          tabs: []
  orders:
    field-1:
      - blockTypeGroup:group-1
      - blockType:bt-1
`

func TestParse_Valid(t *testing.T) {
	snapshot, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	ns, ok := snapshot["neo"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, ns, "blockTypes")
	assert.Contains(t, ns, "orders")
}

func TestParse_JSON(t *testing.T) {
	_, err := Parse([]byte(`{"neo": {"orders": {"f": ["blockType:x"]}}}`))
	require.NoError(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"bad handle", "neo:\n  blockTypes:\n    x:\n      field: f\n      name: X\n      handle: 1abc\n"},
		{"missing field", "neo:\n  blockTypes:\n    x:\n      name: X\n      handle: abc\n"},
		{"negative count", "neo:\n  blockTypes:\n    x:\n      field: f\n      name: X\n      handle: abc\n      maxBlocks: -1\n"},
		{"unknown key", "neo:\n  blockTypes:\n    x:\n      field: f\n      name: X\n      handle: abc\n      colour: red\n"},
		{"bad order token", "neo:\n  orders:\n    f: [\"widget:1\"]\n"},
		{"group without field", "neo:\n  blockTypeGroups:\n    g:\n      name: G\n"},
		{"not yaml", "neo: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.config))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockcfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o644))

	snapshot, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, snapshot, "fields")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
