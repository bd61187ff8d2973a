package blocktypes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/order"
	"github.com/roach88/blockcfg/internal/store"
)

// blockTypeConfig builds the config value published for bt. The sort order
// is carried by the order list, not the config.
func (s *Service) blockTypeConfig(ctx context.Context, bt *ir.BlockType) (*ir.BlockTypeConfig, error) {
	field, err := s.store.FieldByID(ctx, bt.FieldID)
	if err != nil {
		return nil, fmt.Errorf("field %d: %w", bt.FieldID, err)
	}

	cfg := &ir.BlockTypeConfig{
		Field:                field.UID,
		Name:                 bt.Name,
		Handle:               bt.Handle,
		Description:          ir.Ptr(bt.Description),
		IconFilename:         ir.Ptr(bt.Icon.Filename),
		Enabled:              ir.Ptr(bt.Enabled),
		IgnorePermissions:    ir.Ptr(bt.IgnorePermissions),
		MinBlocks:            ir.Ptr(bt.MinBlocks),
		MaxBlocks:            ir.Ptr(bt.MaxBlocks),
		MinSiblingBlocks:     ir.Ptr(bt.MinSiblingBlocks),
		MaxSiblingBlocks:     ir.Ptr(bt.MaxSiblingBlocks),
		MinChildBlocks:       ir.Ptr(bt.MinChildBlocks),
		MaxChildBlocks:       ir.Ptr(bt.MaxChildBlocks),
		GroupChildBlockTypes: ir.Ptr(bt.GroupChildBlockTypes),
		ChildBlocks:          bt.ChildBlocks,
		TopLevel:             ir.Ptr(bt.TopLevel),
		Conditions:           decodeConditions(bt.Conditions),
	}
	if bt.Color != "" {
		cfg.Color = ir.Ptr(string(bt.Color))
	}

	if bt.GroupID != nil {
		g, err := s.store.GroupByID(ctx, *bt.GroupID)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", *bt.GroupID, err)
		}
		cfg.Group = g.UID
	}

	if bt.Icon.AssetID != nil {
		uid, ok, err := s.store.AssetUIDByID(ctx, *bt.Icon.AssetID)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.Icon = &ir.IconConfig{AssetUID: uid}
		}
	}

	if bt.FieldLayoutID != nil {
		layout, err := s.cache(ctx).Layout(ctx, *bt.FieldLayoutID)
		if err != nil {
			return nil, err
		}
		if layout != nil {
			cfg.FieldLayouts = map[string]map[string]any{layout.UID: layout.Config}
		}
	}
	return cfg, nil
}

// decodeConditions turns stored condition JSON back into config values.
// Conditions that are not JSON stay strings.
func decodeConditions(conds map[string]string) map[string]any {
	if len(conds) == 0 {
		return nil
	}
	out := make(map[string]any, len(conds))
	for kind, text := range conds {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			out[kind] = text
			continue
		}
		out[kind] = v
	}
	return out
}

// orderList returns a copy of the field's order list.
func (s *Service) orderList(fieldUID string) ([]string, error) {
	tokens, err := ir.DecodeOrderList(s.config.Get(s.engine.OrdersPath(fieldUID)))
	if err != nil {
		return nil, fmt.Errorf("order list of field %s: %w", fieldUID, err)
	}
	return slices.Clone(tokens), nil
}

// placeInOrder moves token to position sortOrder (1-based) in the field's
// order list, appending it when sortOrder is unset or past the end. The
// returned func restores the previous list.
func (s *Service) placeInOrder(ctx context.Context, fieldUID, token string, sortOrder int) (restore func(), err error) {
	path := s.engine.OrdersPath(fieldUID)
	previous := s.config.Get(path)

	tokens, err := s.orderList(fieldUID)
	if err != nil {
		return nil, err
	}
	tokens = slices.DeleteFunc(tokens, func(t string) bool { return t == token })
	if sortOrder > 0 && sortOrder <= len(tokens) {
		tokens = slices.Insert(tokens, sortOrder-1, token)
	} else {
		tokens = append(tokens, token)
	}

	if err := s.config.Set(ctx, path, tokens); err != nil {
		return nil, err
	}
	return func() {
		_ = s.config.Set(ctx, path, previous)
	}, nil
}

// removeFromOrder removes every occurrence of exactly token from the
// field's order list.
func (s *Service) removeFromOrder(ctx context.Context, fieldUID, token string) error {
	tokens, err := s.orderList(fieldUID)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(tokens, func(t string) bool { return t == token })
	path := s.engine.OrdersPath(fieldUID)
	if len(kept) == 0 {
		return s.config.Remove(ctx, path)
	}
	return s.config.Set(ctx, path, kept)
}

// syncSortOrders writes sortOrder i+1 onto the row of every token in the
// field's order list. A local edit of the list shifts every token behind
// the edited slot, and the engine only reconciles external lists.
func (s *Service) syncSortOrders(ctx context.Context, fieldID int64, fieldUID string) error {
	tokens, err := s.orderList(fieldUID)
	if err != nil {
		return err
	}
	var res order.Result
	err = s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = order.Reconcile(ctx, q, tokens)
		return err
	})
	if err != nil {
		return fmt.Errorf("sort orders of field %s: %w", fieldUID, err)
	}
	if c, ok := memo.FromContext(ctx); ok {
		c.EvictField(fieldID)
	}
	slog.Debug("sort orders synced", "field", fieldUID, "applied", res.Applied, "skipped", len(res.Skipped))
	return nil
}
