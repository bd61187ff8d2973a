package memo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockcfg/internal/ir"
)

// countingLoader serves fixed rows and counts every call.
type countingLoader struct {
	types   []*ir.BlockType
	groups  []*ir.BlockTypeGroup
	layouts map[int64]*ir.FieldLayout
	calls   int
}

func (l *countingLoader) fieldTypes(fieldID int64) []*ir.BlockType {
	out := []*ir.BlockType{}
	for _, bt := range l.types {
		if bt.FieldID == fieldID {
			out = append(out, bt)
		}
	}
	return out
}

func (l *countingLoader) BlockTypesInFieldOfID(_ context.Context, id int64) ([]*ir.BlockType, error) {
	l.calls++
	for _, bt := range l.types {
		if bt.ID == id {
			return l.fieldTypes(bt.FieldID), nil
		}
	}
	return []*ir.BlockType{}, nil
}

func (l *countingLoader) BlockTypesInFieldOfHandle(_ context.Context, handle string) ([]*ir.BlockType, error) {
	l.calls++
	for _, bt := range l.types {
		if bt.Handle == handle {
			return l.fieldTypes(bt.FieldID), nil
		}
	}
	return []*ir.BlockType{}, nil
}

func (l *countingLoader) BlockTypesByField(_ context.Context, fieldID int64) ([]*ir.BlockType, error) {
	l.calls++
	return l.fieldTypes(fieldID), nil
}

func (l *countingLoader) GroupsInFieldOfID(_ context.Context, id int64) ([]*ir.BlockTypeGroup, error) {
	l.calls++
	for _, g := range l.groups {
		if g.ID == id {
			return l.fieldGroups(g.FieldID), nil
		}
	}
	return []*ir.BlockTypeGroup{}, nil
}

func (l *countingLoader) GroupsByField(_ context.Context, fieldID int64) ([]*ir.BlockTypeGroup, error) {
	l.calls++
	return l.fieldGroups(fieldID), nil
}

func (l *countingLoader) fieldGroups(fieldID int64) []*ir.BlockTypeGroup {
	out := []*ir.BlockTypeGroup{}
	for _, g := range l.groups {
		if g.FieldID == fieldID {
			out = append(out, g)
		}
	}
	return out
}

func (l *countingLoader) LayoutByID(_ context.Context, id int64) (*ir.FieldLayout, error) {
	l.calls++
	if layout, ok := l.layouts[id]; ok {
		return layout, nil
	}
	return nil, sql.ErrNoRows
}

func newLoader() *countingLoader {
	return &countingLoader{
		types: []*ir.BlockType{
			{ID: 1, FieldID: 10, Handle: "text", SortOrder: 1, UID: "bt-1"},
			{ID: 2, FieldID: 10, Handle: "image", SortOrder: 2, UID: "bt-2"},
			{ID: 3, FieldID: 20, Handle: "video", SortOrder: 1, UID: "bt-3"},
		},
		groups: []*ir.BlockTypeGroup{
			{ID: 5, FieldID: 10, Name: "Media", SortOrder: 1, UID: "g-1"},
		},
		layouts: map[int64]*ir.FieldLayout{
			7: {ID: 7, UID: "layout-7", Type: "block"},
		},
	}
}

func TestCache_ByIDPopulatesAllIndices(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	bt, err := c.BlockTypeByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, bt)
	assert.Equal(t, "text", bt.Handle)
	assert.Equal(t, 1, loader.calls)

	byHandle, err := c.BlockTypeByHandle(ctx, "text")
	require.NoError(t, err)
	assert.Same(t, bt, byHandle)

	sibling, err := c.BlockTypeByHandle(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sibling.ID)

	byField, err := c.BlockTypesByField(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, byField, 2)

	assert.Equal(t, 1, loader.calls, "lookups after the first must not reach the loader")
}

func TestCache_ByHandleThenByID(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	_, err := c.BlockTypeByHandle(ctx, "video")
	require.NoError(t, err)
	bt, err := c.BlockTypeByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "video", bt.Handle)
	assert.Equal(t, 1, loader.calls)
}

func TestCache_MissesAreMemoized(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bt, err := c.BlockTypeByID(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, bt)

		missing, err := c.BlockTypeByHandle(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		layout, err := c.Layout(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, layout)
	}
	assert.Equal(t, 3, loader.calls)
}

func TestCache_EmptyFieldIsMemoized(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		types, err := c.BlockTypesByField(ctx, 30)
		require.NoError(t, err)
		assert.Empty(t, types)
	}
	assert.Equal(t, 1, loader.calls)
}

func TestCache_PutBlockType(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	_, err := c.BlockTypesByField(ctx, 10)
	require.NoError(t, err)

	renamed := &ir.BlockType{ID: 1, FieldID: 10, Handle: "paragraph", SortOrder: 3, UID: "bt-1"}
	c.PutBlockType(renamed)

	got, err := c.BlockTypeByHandle(ctx, "paragraph")
	require.NoError(t, err)
	assert.Same(t, renamed, got)

	types, err := c.BlockTypesByField(ctx, 10)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "image", types[0].Handle)
	assert.Equal(t, "paragraph", types[1].Handle)
	assert.Equal(t, 1, loader.calls)

	_, stale := c.typesByHandle["text"]
	assert.False(t, stale, "old handle must not resolve after a rename")
}

func TestCache_EvictBlockType(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	_, err := c.BlockTypeByID(ctx, 2)
	require.NoError(t, err)
	c.EvictBlockType(2)

	types, err := c.BlockTypesByField(ctx, 10)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "text", types[0].Handle)
	assert.Equal(t, 1, loader.calls)
}

func TestCache_Groups(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := context.Background()

	g, err := c.GroupByID(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, g)

	groups, err := c.GroupsByField(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, 1, loader.calls)

	c.EvictGroup(5)
	groups, err = c.GroupsByField(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCache_ResetAndContext(t *testing.T) {
	loader := newLoader()
	c := New(loader)
	ctx := NewContext(context.Background(), c)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, err := got.BlockTypeByID(ctx, 1)
	require.NoError(t, err)
	got.Reset()
	_, err = got.BlockTypeByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
