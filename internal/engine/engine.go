package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/order"
	"github.com/roach88/blockcfg/internal/store"
)

// DefaultNamespace is the config tree namespace block type paths live under.
const DefaultNamespace = "neo"

// ErrVetoed is returned by a before-save listener to cancel a save.
var ErrVetoed = errors.New("save vetoed by listener")

// ConfigSource is the declarative config the engine reads order lists from.
// *projectconfig.Store implements it.
type ConfigSource interface {
	Get(path string) any
	ProcessPending(ctx context.Context, path string) error
	IsApplyingExternalChanges() bool
}

// Invalidator drops cached element queries of one element kind.
type Invalidator interface {
	InvalidateKind(kind string)
}

// BlockDeleter removes every block of a type in one site. It runs inside the
// deletion transaction and must use q.
type BlockDeleter func(ctx context.Context, q *store.Queries, siteID, typeID int64) (int, error)

// BlockTypeEvent is passed to block type listeners.
type BlockTypeEvent struct {
	BlockType *ir.BlockType
	IsNew     bool
}

// Engine applies block type, group and order changes to storage.
//
// Every apply runs in one transaction: nothing is written unless every step
// succeeds, and failures are never retried. Reads inside a transaction go
// through the transaction's Queries since the store has a single connection.
type Engine struct {
	store     *store.Store
	namespace string
	config    ConfigSource
	elements  Invalidator
	deleter   BlockDeleter

	beforeSave  []func(ctx context.Context, ev BlockTypeEvent) error
	afterSave   []func(ctx context.Context, ev BlockTypeEvent)
	afterDelete []func(ctx context.Context, bt *ir.BlockType)
	afterGroup  []func(ctx context.Context, g *ir.BlockTypeGroup)
}

// Option configures an Engine.
type Option func(*Engine)

// WithNamespace sets the config namespace. Default: DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(e *Engine) {
		e.namespace = ns
	}
}

// WithConfigSource sets where order lists are read from. Without one, sort
// orders come from the legacy sortOrder value only.
func WithConfigSource(src ConfigSource) Option {
	return func(e *Engine) {
		e.config = src
	}
}

// WithElementCache sets the element query cache to invalidate after writes.
func WithElementCache(inv Invalidator) Option {
	return func(e *Engine) {
		e.elements = inv
	}
}

// WithBlockDeleter replaces the per-site block deletion step.
func WithBlockDeleter(fn BlockDeleter) Option {
	return func(e *Engine) {
		e.deleter = fn
	}
}

// New creates an Engine writing to s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		namespace: DefaultNamespace,
		deleter: func(ctx context.Context, q *store.Queries, siteID, typeID int64) (int, error) {
			return q.DeleteBlocksByType(ctx, siteID, typeID)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Namespace returns the config namespace.
func (e *Engine) Namespace() string {
	return e.namespace
}

// OnBeforeSave registers a listener called inside the transaction before
// the first write. Returning an error aborts the save with nothing written.
func (e *Engine) OnBeforeSave(fn func(ctx context.Context, ev BlockTypeEvent) error) {
	e.beforeSave = append(e.beforeSave, fn)
}

// OnAfterSave registers a listener called after a block type was committed.
func (e *Engine) OnAfterSave(fn func(ctx context.Context, ev BlockTypeEvent)) {
	e.afterSave = append(e.afterSave, fn)
}

// OnAfterDelete registers a listener called after a block type was deleted.
func (e *Engine) OnAfterDelete(fn func(ctx context.Context, bt *ir.BlockType)) {
	e.afterDelete = append(e.afterDelete, fn)
}

// OnAfterSaveGroup registers a listener called after a group was committed.
func (e *Engine) OnAfterSaveGroup(fn func(ctx context.Context, g *ir.BlockTypeGroup)) {
	e.afterGroup = append(e.afterGroup, fn)
}

// OrdersPath returns the config path of a field's order list.
func (e *Engine) OrdersPath(fieldUID string) string {
	return e.namespace + ".orders." + fieldUID
}

// BlockTypePath returns the config path of a block type.
func (e *Engine) BlockTypePath(uid string) string {
	return e.namespace + ".blockTypes." + uid
}

// GroupPath returns the config path of a block type group.
func (e *Engine) GroupPath(uid string) string {
	return e.namespace + ".blockTypeGroups." + uid
}

// orderTokens processes any pending change to the field's order list and
// returns the list. Must not be called inside a transaction.
func (e *Engine) orderTokens(ctx context.Context, fieldUID string) ([]string, error) {
	if e.config == nil {
		return nil, nil
	}
	path := e.OrdersPath(fieldUID)
	if err := e.config.ProcessPending(ctx, path); err != nil {
		return nil, fmt.Errorf("process pending orders for field %s: %w", fieldUID, err)
	}
	tokens, err := ir.DecodeOrderList(e.config.Get(path))
	if err != nil {
		// A corrupt order list degrades to the legacy sort order.
		slog.Warn("ignoring unreadable order list", "field", fieldUID, "error", err)
		return nil, nil
	}
	return tokens, nil
}

// ApplyBlockTypeChange reconciles the block type with uid to cfg.
// A nil cfg deletes the block type.
//
// Applying the same cfg twice leaves identical rows behind.
func (e *Engine) ApplyBlockTypeChange(ctx context.Context, uid string, cfg *ir.BlockTypeConfig) error {
	if cfg == nil {
		return e.ApplyBlockTypeDeletion(ctx, uid)
	}

	tokens, err := e.orderTokens(ctx, cfg.Field)
	if err != nil {
		return err
	}

	var (
		saved *ir.BlockType
		isNew bool
	)
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		fieldID, ok, err := q.FieldIDByUID(ctx, cfg.Field)
		if err != nil {
			return err
		}
		if !ok {
			return newReferentialError(uid, "field %s does not exist", cfg.Field)
		}

		groupID, err := resolveGroup(ctx, q, uid, cfg.Group, fieldID)
		if err != nil {
			return err
		}

		existing, err := q.BlockTypeByUID(ctx, uid)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		bt := &ir.BlockType{UID: uid, FieldID: fieldID, GroupID: groupID}
		if existing != nil {
			bt.ID = existing.ID
			bt.FieldLayoutID = existing.FieldLayoutID
		}
		isNew = bt.IsNew()
		if err := cfg.Apply(bt); err != nil {
			return err
		}
		bt.Icon.AssetID = resolveIcon(ctx, q, cfg.Icon)
		bt.SortOrder = ir.PositionOf(tokens, ir.BlockTypeToken(uid), cfg.SortOrder)

		if errs := ir.ValidateBlockType(bt); len(errs) > 0 {
			return newValidationError(uid, errs)
		}

		for _, fn := range e.beforeSave {
			if err := fn(ctx, BlockTypeEvent{BlockType: bt, IsNew: isNew}); err != nil {
				return err
			}
		}

		if layoutUID, layoutConfig, ok := cfg.FieldLayout(); ok {
			layout := &ir.FieldLayout{UID: layoutUID, Type: ir.ElementKindBlock, Config: layoutConfig}
			if bt.FieldLayoutID != nil {
				layout.ID = *bt.FieldLayoutID
			}
			if err := q.SaveLayout(ctx, layout); err != nil {
				return err
			}
			bt.FieldLayoutID = &layout.ID
		} else if bt.FieldLayoutID != nil {
			if err := q.DeleteLayout(ctx, *bt.FieldLayoutID); err != nil {
				return err
			}
			bt.FieldLayoutID = nil
		}

		if err := q.UpsertBlockType(ctx, bt); err != nil {
			return err
		}
		saved = bt
		return nil
	})
	if err != nil {
		return asTransactionError(uid, "block type save", err)
	}

	if c, ok := memo.FromContext(ctx); ok {
		c.PutBlockType(saved)
		if saved.FieldLayoutID != nil {
			c.EvictLayout(*saved.FieldLayoutID)
		}
	}
	e.invalidateElements()
	slog.Info("block type saved", "uid", uid, "handle", saved.Handle, "id", saved.ID, "new", isNew)

	for _, fn := range e.afterSave {
		fn(ctx, BlockTypeEvent{BlockType: saved, IsNew: isNew})
	}
	return nil
}

// ApplyBlockTypeDeletion deletes the block type with uid together with
// every block of that type in every site and its field layout. An unknown
// uid is a no-op.
func (e *Engine) ApplyBlockTypeDeletion(ctx context.Context, uid string) error {
	var deleted *ir.BlockType
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		bt, err := q.BlockTypeByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		siteIDs, err := q.SiteIDs(ctx)
		if err != nil {
			return err
		}
		for _, siteID := range siteIDs {
			n, err := e.deleter(ctx, q, siteID, bt.ID)
			if err != nil {
				return fmt.Errorf("delete blocks of %s in site %d: %w", bt.Handle, siteID, err)
			}
			if n > 0 {
				slog.Debug("deleted blocks", "block_type", bt.Handle, "site", siteID, "count", n)
			}
		}

		if bt.FieldLayoutID != nil {
			if err := q.DeleteLayout(ctx, *bt.FieldLayoutID); err != nil {
				return err
			}
		}
		if err := q.DeleteBlockType(ctx, bt.ID); err != nil {
			return err
		}
		deleted = bt
		return nil
	})
	if err != nil {
		return asTransactionError(uid, "block type deletion", err)
	}
	if deleted == nil {
		slog.Debug("block type already absent", "uid", uid)
		return nil
	}

	if c, ok := memo.FromContext(ctx); ok {
		c.EvictBlockType(deleted.ID)
		if deleted.FieldLayoutID != nil {
			c.EvictLayout(*deleted.FieldLayoutID)
		}
	}
	e.invalidateElements()
	slog.Info("block type deleted", "uid", uid, "handle", deleted.Handle, "id", deleted.ID)

	for _, fn := range e.afterDelete {
		fn(ctx, deleted)
	}
	return nil
}

// ApplyGroupChange reconciles the group with uid to cfg. A nil cfg deletes
// the group.
func (e *Engine) ApplyGroupChange(ctx context.Context, uid string, cfg *ir.GroupConfig) error {
	if cfg == nil {
		return e.ApplyGroupDeletion(ctx, uid)
	}

	tokens, err := e.orderTokens(ctx, cfg.Field)
	if err != nil {
		return err
	}

	var saved *ir.BlockTypeGroup
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		fieldID, ok, err := q.FieldIDByUID(ctx, cfg.Field)
		if err != nil {
			return err
		}
		if !ok {
			return newReferentialError(uid, "field %s does not exist", cfg.Field)
		}

		g := &ir.BlockTypeGroup{
			FieldID:            fieldID,
			Name:               cfg.Name,
			AlwaysShowDropdown: cfg.AlwaysShowDropdown,
			SortOrder:          ir.PositionOf(tokens, ir.GroupToken(uid), cfg.SortOrder),
			UID:                uid,
		}
		if errs := ir.ValidateGroup(g); len(errs) > 0 {
			return newValidationError(uid, errs)
		}
		if err := q.UpsertGroup(ctx, g); err != nil {
			return err
		}
		saved = g
		return nil
	})
	if err != nil {
		return asTransactionError(uid, "group save", err)
	}

	if c, ok := memo.FromContext(ctx); ok {
		c.PutGroup(saved)
	}
	slog.Info("block type group saved", "uid", uid, "name", saved.Name, "id", saved.ID)

	for _, fn := range e.afterGroup {
		fn(ctx, saved)
	}
	return nil
}

// ApplyGroupDeletion deletes the group with uid. Its block types stay and
// become ungrouped. An unknown uid is a no-op.
func (e *Engine) ApplyGroupDeletion(ctx context.Context, uid string) error {
	var deleted *ir.BlockTypeGroup
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		g, err := q.GroupByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := q.DeleteGroupByUID(ctx, uid); err != nil {
			return err
		}
		deleted = g
		return nil
	})
	if err != nil {
		return asTransactionError(uid, "group deletion", err)
	}
	if deleted == nil {
		return nil
	}

	if c, ok := memo.FromContext(ctx); ok {
		c.EvictGroup(deleted.ID)
		c.EvictField(deleted.FieldID)
	}
	slog.Info("block type group deleted", "uid", uid, "id", deleted.ID)
	return nil
}

// ApplyOrderChange rewrites sort orders from a field's order list. Only
// external changes are applied: the blocktypes service reconciles the lists
// it edits itself.
func (e *Engine) ApplyOrderChange(ctx context.Context, fieldUID string, tokens []string, external bool) error {
	if !external {
		return nil
	}

	var res order.Result
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = order.Reconcile(ctx, q, tokens)
		return err
	})
	if err != nil {
		return asTransactionError(fieldUID, "order reconciliation", err)
	}

	if c, ok := memo.FromContext(ctx); ok {
		if fieldID, ok, err := e.store.FieldIDByUID(ctx, fieldUID); err == nil && ok {
			c.EvictField(fieldID)
		}
	}
	slog.Info("orders applied", "field", fieldUID, "applied", res.Applied, "skipped", len(res.Skipped))
	return nil
}

func (e *Engine) invalidateElements() {
	if e.elements != nil {
		e.elements.InvalidateKind(ir.ElementKindBlock)
	}
}

// resolveGroup maps a group uid to its id. The group must exist and belong
// to fieldID.
func resolveGroup(ctx context.Context, q *store.Queries, uid, groupUID string, fieldID int64) (*int64, error) {
	if groupUID == "" {
		return nil, nil
	}
	g, err := q.GroupByUID(ctx, groupUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newReferentialError(uid, "group %s does not exist", groupUID)
	}
	if err != nil {
		return nil, err
	}
	if g.FieldID != fieldID {
		return nil, newReferentialError(uid, "group %s belongs to another field", groupUID)
	}
	return &g.ID, nil
}

// resolveIcon maps an icon reference to an asset id. Unresolvable icons
// yield nil; an icon never fails a save.
func resolveIcon(ctx context.Context, q *store.Queries, icon *ir.IconConfig) *int64 {
	if icon == nil {
		return nil
	}
	var (
		id  int64
		ok  bool
		err error
	)
	switch {
	case icon.AssetUID != "":
		id, ok, err = q.AssetIDByUID(ctx, icon.AssetUID)
	case icon.Volume != "" && icon.Filename != "":
		id, ok, err = q.AssetIDByLocation(ctx, icon.Volume, icon.FolderPath, icon.Filename)
	}
	if err != nil {
		slog.Debug("icon asset lookup failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &id
}
