// Package elementcache caches element query results per element kind.
//
// Entries are keyed by the element kind and the query's cache key. Saving or
// deleting a block type invalidates every cached query of kind "block" at
// once, since any of them may include blocks of the changed type.
package elementcache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/roach88/blockcfg/internal/ir"
)

// Key identifies one cached query.
type Key struct {
	Kind  string
	Query string
}

// LoadFunc runs the query on a miss.
type LoadFunc func(ctx context.Context) ([]*ir.Block, error)

// Cache is safe for concurrent use.
type Cache struct {
	items *ttlcache.Cache[Key, []*ir.Block]
}

// New creates a cache whose entries expire after ttl. A zero ttl keeps
// entries until they are invalidated. Call Close to stop the expiry loop.
func New(ttl time.Duration) *Cache {
	items := ttlcache.New(
		ttlcache.WithTTL[Key, []*ir.Block](ttl),
		ttlcache.WithDisableTouchOnHit[Key, []*ir.Block](),
	)
	go items.Start()
	return &Cache{items: items}
}

// Close stops the cache background goroutine.
func (c *Cache) Close() {
	c.items.Stop()
}

// Get returns the cached result for key, running load on a miss. Failed
// loads are not cached. The returned blocks are copies and may be modified.
func (c *Cache) Get(ctx context.Context, key Key, load LoadFunc) ([]*ir.Block, error) {
	var loadErr error
	loader := ttlcache.LoaderFunc[Key, []*ir.Block](
		func(cache *ttlcache.Cache[Key, []*ir.Block], k Key) *ttlcache.Item[Key, []*ir.Block] {
			blocks, err := load(ctx)
			if err != nil {
				loadErr = err
				return nil
			}
			return cache.Set(k, blocks, ttlcache.DefaultTTL)
		},
	)

	item := c.items.Get(key, ttlcache.WithLoader[Key, []*ir.Block](loader))
	if loadErr != nil {
		return nil, loadErr
	}
	if item == nil {
		return []*ir.Block{}, nil
	}
	return cloneBlocks(item.Value()), nil
}

// InvalidateKind drops every cached query of kind.
func (c *Cache) InvalidateKind(kind string) {
	for _, k := range c.items.Keys() {
		if k.Kind == kind {
			c.items.Delete(k)
		}
	}
}

// Len returns the number of cached queries.
func (c *Cache) Len() int {
	return c.items.Len()
}

func cloneBlocks(in []*ir.Block) []*ir.Block {
	out := make([]*ir.Block, len(in))
	for i, b := range in {
		cp := *b
		cp.UseMemoized(nil)
		out[i] = &cp
	}
	return out
}
