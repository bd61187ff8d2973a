// Package resolver answers block queries for tree-shaped consumers.
//
// Resolving the full tree (level 0) attaches the complete result set to
// every returned block, so that Children can answer from memory for any
// block of that response instead of issuing another query.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/blockcfg/internal/elementcache"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/store"
)

// Querier runs block queries. *store.Store and *store.Queries implement it.
type Querier interface {
	QueryBlocks(ctx context.Context, bq store.BlockQuery) ([]*ir.Block, error)
}

// Directive post-processes a resolved set, for example to drop blocks the
// caller may not see. Directives run after everything else.
type Directive func(ctx context.Context, blocks []*ir.Block) ([]*ir.Block, error)

// Parent is what a resolution starts from. A nil *Parent starts a fresh
// query.
type Parent struct {
	// Preloaded is an already-fetched collection, for example blocks
	// eager-loaded with their owner. When set, no query runs.
	Preloaded []*ir.Block
	// Query is the parent's prepared query. Args are applied on top of it.
	Query *store.BlockQuery
}

// Args are the caller's query arguments.
type Args struct {
	// Level selects one nesting level. Nil means top-level only; 0 means
	// every level.
	Level *int
	// Filters maps argument names (fieldId, ownerId, siteId, typeId, id,
	// parentId) to ids.
	Filters map[string]any
}

// Resolver resolves block queries.
type Resolver struct {
	q          Querier
	cache      *elementcache.Cache
	directives []Directive
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithElementCache serves fresh queries through c.
func WithElementCache(c *elementcache.Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithDirectives appends directives applied to every resolved set.
func WithDirectives(ds ...Directive) Option {
	return func(r *Resolver) {
		r.directives = append(r.directives, ds...)
	}
}

// New creates a Resolver.
func New(q Querier, opts ...Option) *Resolver {
	r := &Resolver{q: q}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the blocks for parent and args, de-duplicated by id.
func (r *Resolver) Resolve(ctx context.Context, parent *Parent, args Args) ([]*ir.Block, error) {
	var (
		blocks []*ir.Block
		err    error
	)
	if parent != nil && parent.Preloaded != nil {
		blocks = resolvePreloaded(parent.Preloaded, args.Level)
	} else {
		var base *store.BlockQuery
		if parent != nil {
			base = parent.Query
		}
		blocks, err = r.query(ctx, base, args)
		if err != nil {
			return nil, err
		}
	}

	if args.Level != nil && *args.Level == 0 {
		for _, b := range blocks {
			b.UseMemoized(blocks)
		}
	}
	return r.applyDirectives(ctx, blocks)
}

// Children returns the blocks directly beneath b in sort order, from b's
// memoized result set when it has one.
func (r *Resolver) Children(ctx context.Context, b *ir.Block) ([]*ir.Block, error) {
	if all := b.Memoized(); all != nil {
		children := []*ir.Block{}
		for _, c := range all {
			if c.ParentID != nil && *c.ParentID == b.ID {
				children = append(children, c)
			}
		}
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].SortOrder < children[j].SortOrder
		})
		return children, nil
	}

	id := b.ID
	children, err := r.q.QueryBlocks(ctx, store.BlockQuery{ParentID: &id})
	if err != nil {
		return nil, fmt.Errorf("children of block %d: %w", b.ID, err)
	}
	return children, nil
}

func (r *Resolver) query(ctx context.Context, base *store.BlockQuery, args Args) ([]*ir.Block, error) {
	var bq store.BlockQuery
	if base != nil {
		bq = *base
	}
	level := 1
	if args.Level != nil {
		level = *args.Level
	}
	if level == 0 {
		bq.Level = nil
	} else {
		bq.Level = &level
	}
	if err := applyFilters(&bq, args.Filters); err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]*ir.Block, error) {
		return r.q.QueryBlocks(ctx, bq)
	}
	var (
		blocks []*ir.Block
		err    error
	)
	if r.cache != nil {
		blocks, err = r.cache.Get(ctx, elementcache.Key{Kind: ir.ElementKindBlock, Query: bq.CacheKey()}, load)
	} else {
		blocks, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve blocks: %w", err)
	}
	return dedupe(blocks), nil
}

// resolvePreloaded filters an eager-loaded collection by level. When the
// level filter leaves nothing the whole collection is returned.
func resolvePreloaded(preloaded []*ir.Block, level *int) []*ir.Block {
	all := dedupe(preloaded)
	want := 1
	if level != nil {
		want = *level
	}
	if want == 0 {
		return all
	}
	filtered := make([]*ir.Block, 0, len(all))
	for _, b := range all {
		if b.Level == want {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == 0 {
		return all
	}
	return filtered
}

func (r *Resolver) applyDirectives(ctx context.Context, blocks []*ir.Block) ([]*ir.Block, error) {
	var err error
	for _, d := range r.directives {
		if blocks, err = d(ctx, blocks); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

func dedupe(blocks []*ir.Block) []*ir.Block {
	seen := make(map[int64]struct{}, len(blocks))
	out := make([]*ir.Block, 0, len(blocks))
	for _, b := range blocks {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
