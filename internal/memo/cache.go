package memo

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/blockcfg/internal/ir"
)

// Loader is the storage surface a Cache reads through.
// *store.Queries and *store.Store satisfy it.
type Loader interface {
	BlockTypesInFieldOfID(ctx context.Context, id int64) ([]*ir.BlockType, error)
	BlockTypesInFieldOfHandle(ctx context.Context, handle string) ([]*ir.BlockType, error)
	BlockTypesByField(ctx context.Context, fieldID int64) ([]*ir.BlockType, error)
	GroupsInFieldOfID(ctx context.Context, id int64) ([]*ir.BlockTypeGroup, error)
	GroupsByField(ctx context.Context, fieldID int64) ([]*ir.BlockTypeGroup, error)
	LayoutByID(ctx context.Context, id int64) (*ir.FieldLayout, error)
}

// Cache memoizes block types, groups and layouts for one operation.
//
// A key present in a map with a nil value records a confirmed miss.
type Cache struct {
	loader Loader

	typesByID     map[int64]*ir.BlockType
	typesByHandle map[string]*ir.BlockType
	typesByField  map[int64][]*ir.BlockType

	groupsByID    map[int64]*ir.BlockTypeGroup
	groupsByField map[int64][]*ir.BlockTypeGroup

	layouts map[int64]*ir.FieldLayout
}

// New returns an empty cache reading through loader.
func New(loader Loader) *Cache {
	c := &Cache{loader: loader}
	c.Reset()
	return c
}

// Reset drops every entry so the cache can be reused for a new operation.
func (c *Cache) Reset() {
	c.typesByID = make(map[int64]*ir.BlockType)
	c.typesByHandle = make(map[string]*ir.BlockType)
	c.typesByField = make(map[int64][]*ir.BlockType)
	c.groupsByID = make(map[int64]*ir.BlockTypeGroup)
	c.groupsByField = make(map[int64][]*ir.BlockTypeGroup)
	c.layouts = make(map[int64]*ir.FieldLayout)
}

// BlockTypeByID returns the block type with id, or nil if there is none.
func (c *Cache) BlockTypeByID(ctx context.Context, id int64) (*ir.BlockType, error) {
	if bt, ok := c.typesByID[id]; ok {
		return bt, nil
	}
	types, err := c.loader.BlockTypesInFieldOfID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load block type %d: %w", id, err)
	}
	c.fillField(types)
	if _, ok := c.typesByID[id]; !ok {
		c.typesByID[id] = nil
	}
	return c.typesByID[id], nil
}

// BlockTypeByHandle returns the block type with handle, or nil if there is
// none. When several fields share a handle the first one loaded wins.
func (c *Cache) BlockTypeByHandle(ctx context.Context, handle string) (*ir.BlockType, error) {
	if bt, ok := c.typesByHandle[handle]; ok {
		return bt, nil
	}
	types, err := c.loader.BlockTypesInFieldOfHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("load block type %q: %w", handle, err)
	}
	c.fillField(types)
	if _, ok := c.typesByHandle[handle]; !ok {
		c.typesByHandle[handle] = nil
	}
	return c.typesByHandle[handle], nil
}

// BlockTypesByField returns a field's block types in sort order. The
// returned slice must not be modified.
func (c *Cache) BlockTypesByField(ctx context.Context, fieldID int64) ([]*ir.BlockType, error) {
	if types, ok := c.typesByField[fieldID]; ok {
		return types, nil
	}
	types, err := c.loader.BlockTypesByField(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("load block types for field %d: %w", fieldID, err)
	}
	c.fillField(types)
	c.typesByField[fieldID] = types
	return types, nil
}

// fillField indexes one field's complete block type list.
func (c *Cache) fillField(types []*ir.BlockType) {
	if len(types) == 0 {
		return
	}
	for _, bt := range types {
		c.typesByID[bt.ID] = bt
		if c.typesByHandle[bt.Handle] == nil {
			c.typesByHandle[bt.Handle] = bt
		}
	}
	c.typesByField[types[0].FieldID] = types
}

// PutBlockType records a freshly written block type, replacing any cached
// copy in every index.
func (c *Cache) PutBlockType(bt *ir.BlockType) {
	if old, ok := c.typesByID[bt.ID]; ok && old != nil {
		c.removeBlockType(old)
	}
	c.typesByID[bt.ID] = bt
	c.typesByHandle[bt.Handle] = bt
	if types, ok := c.typesByField[bt.FieldID]; ok {
		types = append(slices.Clone(types), bt)
		sortBlockTypes(types)
		c.typesByField[bt.FieldID] = types
	}
}

// EvictBlockType forgets a deleted block type. Later lookups of its id or
// handle go back to the Loader.
func (c *Cache) EvictBlockType(id int64) {
	old, ok := c.typesByID[id]
	delete(c.typesByID, id)
	if ok && old != nil {
		c.removeBlockType(old)
	}
}

func (c *Cache) removeBlockType(old *ir.BlockType) {
	if c.typesByHandle[old.Handle] == old {
		delete(c.typesByHandle, old.Handle)
	}
	if types, ok := c.typesByField[old.FieldID]; ok {
		c.typesByField[old.FieldID] = slices.DeleteFunc(slices.Clone(types), func(bt *ir.BlockType) bool {
			return bt.ID == old.ID
		})
	}
}

// GroupByID returns the group with id, or nil if there is none.
func (c *Cache) GroupByID(ctx context.Context, id int64) (*ir.BlockTypeGroup, error) {
	if g, ok := c.groupsByID[id]; ok {
		return g, nil
	}
	groups, err := c.loader.GroupsInFieldOfID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load group %d: %w", id, err)
	}
	c.fillGroups(groups)
	if _, ok := c.groupsByID[id]; !ok {
		c.groupsByID[id] = nil
	}
	return c.groupsByID[id], nil
}

// GroupsByField returns a field's groups in sort order.
func (c *Cache) GroupsByField(ctx context.Context, fieldID int64) ([]*ir.BlockTypeGroup, error) {
	if groups, ok := c.groupsByField[fieldID]; ok {
		return groups, nil
	}
	groups, err := c.loader.GroupsByField(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("load groups for field %d: %w", fieldID, err)
	}
	c.fillGroups(groups)
	c.groupsByField[fieldID] = groups
	return groups, nil
}

func (c *Cache) fillGroups(groups []*ir.BlockTypeGroup) {
	if len(groups) == 0 {
		return
	}
	for _, g := range groups {
		c.groupsByID[g.ID] = g
	}
	c.groupsByField[groups[0].FieldID] = groups
}

// PutGroup records a freshly written group.
func (c *Cache) PutGroup(g *ir.BlockTypeGroup) {
	c.EvictGroup(g.ID)
	c.groupsByID[g.ID] = g
	if groups, ok := c.groupsByField[g.FieldID]; ok {
		groups = append(slices.Clone(groups), g)
		slices.SortStableFunc(groups, func(a, b *ir.BlockTypeGroup) int {
			return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
		})
		c.groupsByField[g.FieldID] = groups
	}
}

// EvictGroup forgets a deleted group. Block types that pointed at it still
// carry the stale group id; use EvictField to drop those too.
func (c *Cache) EvictGroup(id int64) {
	old, ok := c.groupsByID[id]
	delete(c.groupsByID, id)
	if !ok || old == nil {
		return
	}
	if groups, ok := c.groupsByField[old.FieldID]; ok {
		c.groupsByField[old.FieldID] = slices.DeleteFunc(slices.Clone(groups), func(g *ir.BlockTypeGroup) bool {
			return g.ID == id
		})
	}
}

// EvictField forgets everything cached for a field, e.g. after its sort
// orders were rewritten.
func (c *Cache) EvictField(fieldID int64) {
	for _, bt := range c.typesByField[fieldID] {
		delete(c.typesByID, bt.ID)
		if c.typesByHandle[bt.Handle] == bt {
			delete(c.typesByHandle, bt.Handle)
		}
	}
	delete(c.typesByField, fieldID)
	for _, g := range c.groupsByField[fieldID] {
		delete(c.groupsByID, g.ID)
	}
	delete(c.groupsByField, fieldID)
	// Confirmed misses may have been created since.
	for id, bt := range c.typesByID {
		if bt == nil {
			delete(c.typesByID, id)
		}
	}
	for h, bt := range c.typesByHandle {
		if bt == nil {
			delete(c.typesByHandle, h)
		}
	}
	for id, g := range c.groupsByID {
		if g == nil {
			delete(c.groupsByID, id)
		}
	}
}

// Layout returns the field layout with id, or nil if there is none.
func (c *Cache) Layout(ctx context.Context, id int64) (*ir.FieldLayout, error) {
	if l, ok := c.layouts[id]; ok {
		return l, nil
	}
	l, err := c.loader.LayoutByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		c.layouts[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load layout %d: %w", id, err)
	}
	c.layouts[id] = l
	return l, nil
}

// EvictLayout forgets a layout.
func (c *Cache) EvictLayout(id int64) {
	delete(c.layouts, id)
}

func sortBlockTypes(types []*ir.BlockType) {
	slices.SortStableFunc(types, func(a, b *ir.BlockType) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
}
