package elementcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockcfg/internal/ir"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c := New(ttl)
	t.Cleanup(c.Close)
	return c
}

func countingLoad(calls *int, blocks ...*ir.Block) LoadFunc {
	return func(context.Context) ([]*ir.Block, error) {
		*calls++
		return blocks, nil
	}
}

func TestCache_HitAfterMiss(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()
	key := Key{Kind: ir.ElementKindBlock, Query: "blocks|field_id=1"}

	calls := 0
	load := countingLoad(&calls, &ir.Block{ID: 1, Level: 1})

	first, err := c.Get(ctx, key, load)
	require.NoError(t, err)
	second, err := c.Get(ctx, key, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()
	key := Key{Kind: ir.ElementKindBlock, Query: "q"}
	calls := 0
	load := countingLoad(&calls, &ir.Block{ID: 1, Level: 1})

	first, err := c.Get(ctx, key, load)
	require.NoError(t, err)
	first[0].Level = 9
	first[0].UseMemoized(first)

	second, err := c.Get(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, 1, second[0].Level)
	assert.Nil(t, second[0].Memoized())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()
	key := Key{Kind: ir.ElementKindBlock, Query: "q"}

	_, err := c.Get(ctx, key, func(context.Context) ([]*ir.Block, error) {
		return nil, errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	calls := 0
	blocks, err := c.Get(ctx, key, countingLoad(&calls, &ir.Block{ID: 2}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, blocks, 1)
}

func TestCache_InvalidateKind(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()
	calls := 0
	load := countingLoad(&calls, &ir.Block{ID: 1})

	_, _ = c.Get(ctx, Key{Kind: ir.ElementKindBlock, Query: "a"}, load)
	_, _ = c.Get(ctx, Key{Kind: ir.ElementKindBlock, Query: "b"}, load)
	_, _ = c.Get(ctx, Key{Kind: "entry", Query: "a"}, load)
	require.Equal(t, 3, c.Len())

	c.InvalidateKind(ir.ElementKindBlock)

	assert.Equal(t, 1, c.Len())
	_, _ = c.Get(ctx, Key{Kind: ir.ElementKindBlock, Query: "a"}, load)
	assert.Equal(t, 4, calls)
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(t, 20*time.Millisecond)
	ctx := context.Background()
	key := Key{Kind: ir.ElementKindBlock, Query: "q"}
	calls := 0
	load := countingLoad(&calls, &ir.Block{ID: 1})

	_, _ = c.Get(ctx, key, load)
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Get(ctx, key, load)

	assert.Equal(t, 2, calls)
}
