package harness

import (
	"context"
	"fmt"

	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/store"
)

// captureState summarizes the store and config after a scenario. Entities
// are listed in storage order and referenced by uid or handle so snapshots
// do not depend on row ids, except for blocks which have no other identity.
func (h *Harness) captureState(ctx context.Context) (map[string]any, error) {
	ctx = memo.NewContext(ctx, memo.New(h.store))

	groups, err := h.service.GetAllGroups(ctx)
	if err != nil {
		return nil, err
	}
	groupUIDs := make(map[int64]string, len(groups))
	groupList := make([]any, 0, len(groups))
	for _, g := range groups {
		groupUIDs[g.ID] = g.UID
		groupList = append(groupList, map[string]any{
			"name":      g.Name,
			"sortOrder": g.SortOrder,
			"uid":       g.UID,
		})
	}

	types, err := h.service.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	handles := make(map[int64]string, len(types))
	typeList := make([]any, 0, len(types))
	for _, bt := range types {
		handles[bt.ID] = bt.Handle
		entry := map[string]any{
			"handle":    bt.Handle,
			"sortOrder": bt.SortOrder,
			"topLevel":  bt.TopLevel,
			"uid":       bt.UID,
		}
		if bt.GroupID != nil {
			entry["group"] = groupUIDs[*bt.GroupID]
		}
		typeList = append(typeList, entry)
	}

	blocks, err := h.store.QueryBlocks(ctx, store.BlockQuery{})
	if err != nil {
		return nil, err
	}
	blockList := make([]any, 0, len(blocks))
	for _, b := range blocks {
		handle, ok := handles[b.TypeID]
		if !ok {
			handle = fmt.Sprintf("#%d", b.TypeID)
		}
		entry := map[string]any{
			"id":        b.ID,
			"level":     b.Level,
			"sortOrder": b.SortOrder,
			"type":      handle,
		}
		if b.ParentID != nil {
			entry["parentId"] = *b.ParentID
		}
		blockList = append(blockList, entry)
	}

	state := map[string]any{
		"blockTypes": typeList,
		"blocks":     blockList,
		"groups":     groupList,
	}
	if orders := h.config.Get(h.engine.Namespace() + ".orders"); orders != nil {
		state["orders"] = orders
	}
	return state, nil
}
