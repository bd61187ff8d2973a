package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChildBlocks(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		mode    ChildBlocksMode
		handles []string
	}{
		{"nil", nil, ChildBlocksNone, nil},
		{"empty string", "", ChildBlocksNone, nil},
		{"false", false, ChildBlocksNone, nil},
		{"wildcard", "*", ChildBlocksAny, nil},
		{"encoded list", `["b","a"]`, ChildBlocksSet, []string{"a", "b"}},
		{"list", []any{"quote", "text"}, ChildBlocksSet, []string{"quote", "text"}},
		{"empty list", []any{}, ChildBlocksNone, nil},
		{"single handle", "text", ChildBlocksSet, []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseChildBlocks(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, cb.Mode())
			assert.Equal(t, tt.handles, cb.Handles())
		})
	}
}

func TestParseChildBlocks_Rejects(t *testing.T) {
	_, err := ParseChildBlocks([]any{"a", 3})
	assert.Error(t, err)

	_, err = ParseChildBlocks(`["a"`)
	assert.Error(t, err)

	_, err = ParseChildBlocks(42)
	assert.Error(t, err)
}

func TestChildBlocks_Allows(t *testing.T) {
	only := ChildBlocksOf("b")
	assert.True(t, only.Allows("b"))
	assert.False(t, only.Allows("c"))

	assert.True(t, AnyChildBlocks().Allows("anything"))
	assert.False(t, NoChildBlocks().Allows("b"))
}

func TestChildBlocks_JSON(t *testing.T) {
	type wrapper struct {
		ChildBlocks ChildBlocks `json:"childBlocks"`
	}

	for _, cb := range []ChildBlocks{NoChildBlocks(), AnyChildBlocks(), ChildBlocksOf("z", "a")} {
		data, err := json.Marshal(wrapper{cb})
		require.NoError(t, err)

		var back wrapper
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, cb.Equal(back.ChildBlocks), "round trip of %s", data)
	}

	data, err := json.Marshal(wrapper{ChildBlocksOf("z", "a")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"childBlocks":["a","z"]}`, string(data))
}
