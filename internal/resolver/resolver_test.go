package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockcfg/internal/elementcache"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/store"
)

type countingQuerier struct {
	inner   Querier
	queries []store.BlockQuery
}

func (c *countingQuerier) QueryBlocks(ctx context.Context, bq store.BlockQuery) ([]*ir.Block, error) {
	c.queries = append(c.queries, bq)
	return c.inner.QueryBlocks(ctx, bq)
}

type tree struct {
	fieldID int64
	a, b, c *ir.Block
}

// setupTree stores A (level 1), B (level 2, child of A) and C (level 1).
func setupTree(t *testing.T) (*countingQuerier, tree) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fieldID, err := s.UpsertField(ctx, ir.Field{UID: "field-1", Handle: "content"})
	require.NoError(t, err)
	siteID, err := s.UpsertSite(ctx, "en")
	require.NoError(t, err)
	bt := &ir.BlockType{FieldID: fieldID, Name: "Text", Handle: "text", UID: "bt-1", ChildBlocks: ir.AnyChildBlocks()}
	require.NoError(t, s.UpsertBlockType(ctx, bt))

	tr := tree{fieldID: fieldID}
	tr.a = &ir.Block{OwnerID: 100, FieldID: fieldID, TypeID: bt.ID, SiteID: siteID, Level: 1, SortOrder: 1}
	require.NoError(t, s.CreateBlock(ctx, tr.a))
	tr.b = &ir.Block{OwnerID: 100, FieldID: fieldID, TypeID: bt.ID, SiteID: siteID, Level: 2, SortOrder: 1, ParentID: &tr.a.ID}
	require.NoError(t, s.CreateBlock(ctx, tr.b))
	tr.c = &ir.Block{OwnerID: 100, FieldID: fieldID, TypeID: bt.ID, SiteID: siteID, Level: 1, SortOrder: 2}
	require.NoError(t, s.CreateBlock(ctx, tr.c))

	return &countingQuerier{inner: s}, tr
}

func ids(blocks []*ir.Block) []int64 {
	out := make([]int64, len(blocks))
	for i, b := range blocks {
		out[i] = b.ID
	}
	return out
}

func TestResolve_FullTreeQueriesOnce(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)
	ctx := context.Background()

	blocks, err := r.Resolve(ctx, nil, Args{Level: ir.Ptr(0)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{tr.a.ID, tr.b.ID, tr.c.ID}, ids(blocks))

	// Children of every returned block come from the memo.
	for _, b := range blocks {
		require.NotNil(t, b.Memoized())
		_, err := r.Children(ctx, b)
		require.NoError(t, err)
	}
	assert.Len(t, q.queries, 1)

	var a *ir.Block
	for _, b := range blocks {
		if b.ID == tr.a.ID {
			a = b
		}
	}
	children, err := r.Children(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.b.ID}, ids(children))
}

func TestResolve_DefaultsToTopLevel(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)

	blocks, err := r.Resolve(context.Background(), nil, Args{})
	require.NoError(t, err)

	assert.Equal(t, []int64{tr.a.ID, tr.c.ID}, ids(blocks))
	for _, b := range blocks {
		assert.Nil(t, b.Memoized())
	}
}

func TestResolve_ExactLevel(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)

	blocks, err := r.Resolve(context.Background(), nil, Args{Level: ir.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.b.ID}, ids(blocks))
}

func TestResolve_Filters(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)
	ctx := context.Background()

	blocks, err := r.Resolve(ctx, nil, Args{
		Level:   ir.Ptr(0),
		Filters: map[string]any{"fieldId": float64(tr.fieldID), "parentId": tr.a.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.b.ID}, ids(blocks))

	_, err = r.Resolve(ctx, nil, Args{Filters: map[string]any{"colour": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = r.Resolve(ctx, nil, Args{Filters: map[string]any{"id": 1.5}})
	require.Error(t, err)
}

func TestResolve_ParentQuery(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)

	owner := int64(100)
	blocks, err := r.Resolve(context.Background(), &Parent{Query: &store.BlockQuery{OwnerID: &owner}}, Args{})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.a.ID, tr.c.ID}, ids(blocks))
	require.Len(t, q.queries, 1)
	assert.Equal(t, &owner, q.queries[0].OwnerID)
}

func TestResolve_PreloadedDedupesAndFilters(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)
	ctx := context.Background()

	preloaded := []*ir.Block{tr.a, tr.b, tr.a, tr.c, tr.b}

	top, err := r.Resolve(ctx, &Parent{Preloaded: preloaded}, Args{})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.a.ID, tr.c.ID}, ids(top))

	all, err := r.Resolve(ctx, &Parent{Preloaded: preloaded}, Args{Level: ir.Ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.a.ID, tr.b.ID, tr.c.ID}, ids(all))
	for _, b := range all {
		assert.Len(t, b.Memoized(), 3)
	}

	assert.Empty(t, q.queries, "preloaded collections never query")
}

func TestResolve_PreloadedFallsBackToUnfiltered(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)

	// Only level-2 blocks preloaded; the default level-1 filter matches
	// nothing, so the collection is returned as is.
	blocks, err := r.Resolve(context.Background(), &Parent{Preloaded: []*ir.Block{tr.b}}, Args{})
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.b.ID}, ids(blocks))
}

func TestResolve_DirectivesRunLast(t *testing.T) {
	q, tr := setupTree(t)

	var seen []int64
	r := New(q, WithDirectives(func(_ context.Context, blocks []*ir.Block) ([]*ir.Block, error) {
		seen = ids(blocks)
		// Hide C.
		out := blocks[:0:0]
		for _, b := range blocks {
			if b.ID != tr.c.ID {
				out = append(out, b)
			}
		}
		return out, nil
	}))

	blocks, err := r.Resolve(context.Background(), nil, Args{Level: ir.Ptr(0)})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{tr.a.ID, tr.b.ID, tr.c.ID}, seen)
	assert.ElementsMatch(t, []int64{tr.a.ID, tr.b.ID}, ids(blocks))
}

func TestResolve_ElementCache(t *testing.T) {
	q, tr := setupTree(t)
	cache := elementcache.New(0)
	t.Cleanup(cache.Close)
	r := New(q, WithElementCache(cache))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		blocks, err := r.Resolve(ctx, nil, Args{})
		require.NoError(t, err)
		assert.Equal(t, []int64{tr.a.ID, tr.c.ID}, ids(blocks))
	}
	assert.Len(t, q.queries, 1)

	cache.InvalidateKind(ir.ElementKindBlock)
	_, err := r.Resolve(ctx, nil, Args{})
	require.NoError(t, err)
	assert.Len(t, q.queries, 2)
}

func TestChildren_WithoutMemoQueries(t *testing.T) {
	q, tr := setupTree(t)
	r := New(q)

	children, err := r.Children(context.Background(), tr.a)
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.b.ID}, ids(children))
	assert.Len(t, q.queries, 1)
}
