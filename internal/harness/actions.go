package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/blockcfg/internal/blocktypes"
	"github.com/roach88/blockcfg/internal/engine"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/projectconfig"
	"github.com/roach88/blockcfg/internal/resolver"
)

// Scenario actions.
const (
	ActionApplyConfig     = "config.apply"
	ActionSetConfig       = "config.set"
	ActionRemoveConfig    = "config.remove"
	ActionSaveBlockType   = "blockTypes.save"
	ActionDeleteBlockType = "blockTypes.delete"
	ActionSaveGroup       = "groups.save"
	ActionDeleteGroup     = "groups.delete"
	ActionCreateBlock     = "blocks.create"
	ActionQueryBlocks     = "blocks.query"
	ActionVeto            = "listeners.veto"
)

// actionFunc runs one step. The returned map is the completion result.
type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error)

var actions = map[string]actionFunc{
	ActionApplyConfig:     applyConfig,
	ActionSetConfig:       setConfig,
	ActionRemoveConfig:    removeConfig,
	ActionSaveBlockType:   saveBlockType,
	ActionDeleteBlockType: deleteBlockType,
	ActionSaveGroup:       saveGroup,
	ActionDeleteGroup:     deleteGroup,
	ActionCreateBlock:     createBlock,
	ActionQueryBlocks:     queryBlocks,
	ActionVeto:            veto,
}

// applyConfig treats args as a whole config snapshot.
func applyConfig(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	if err := projectconfig.Validate(args); err != nil {
		return nil, err
	}
	return nil, h.service.ApplyProjectConfig(ctx, args)
}

func setConfig(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	return nil, h.config.Set(ctx, path, args["value"])
}

func removeConfig(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	return nil, h.config.Remove(ctx, path)
}

// saveBlockType creates the block type with the given handle, or updates
// it when one exists. Settings absent from args keep their current value.
func saveBlockType(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	handle, err := requireString(args, "handle")
	if err != nil {
		return nil, err
	}
	bt, err := h.service.GetByHandle(ctx, handle)
	switch {
	case engine.IsNotFound(err):
		bt = &ir.BlockType{
			Handle:               handle,
			Name:                 handle,
			Enabled:              true,
			IgnorePermissions:    true,
			GroupChildBlockTypes: true,
			TopLevel:             true,
		}
	case err != nil:
		return nil, err
	}

	if fieldHandle, ok := args["field"].(string); ok {
		field, err := h.store.FieldByHandle(ctx, fieldHandle)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.NewNotFoundError("field", "handle "+fieldHandle)
		}
		if err != nil {
			return nil, err
		}
		bt.FieldID = field.ID
	}
	if name, ok := args["name"].(string); ok {
		bt.Name = name
	}
	if v, ok := args["topLevel"].(bool); ok {
		bt.TopLevel = v
	}
	if raw, ok := args["childBlocks"]; ok {
		if bt.ChildBlocks, err = ir.ParseChildBlocks(raw); err != nil {
			return nil, err
		}
	}
	ints := map[string]*int{
		"sortOrder":      &bt.SortOrder,
		"minBlocks":      &bt.MinBlocks,
		"maxBlocks":      &bt.MaxBlocks,
		"maxChildBlocks": &bt.MaxChildBlocks,
	}
	for key, dst := range ints {
		if v, ok, err := optionalInt(args, key); err != nil {
			return nil, err
		} else if ok {
			*dst = v
		}
	}
	if groupUID, ok := args["group"].(string); ok {
		groupUID = h.groupUID(groupUID)
		g, err := h.store.GroupByUID(ctx, groupUID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.NewNotFoundError("group", "uid "+groupUID)
		}
		if err != nil {
			return nil, err
		}
		bt.GroupID = &g.ID
	}

	saved, err := h.service.Save(ctx, bt, true)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, engine.ErrVetoed
	}
	return map[string]any{"uid": bt.UID, "sortOrder": bt.SortOrder}, nil
}

func deleteBlockType(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	handle, err := requireString(args, "handle")
	if err != nil {
		return nil, err
	}
	bt, err := h.service.GetByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	_, err = h.service.Delete(ctx, bt)
	return nil, err
}

// saveGroup creates a group, or updates the group named by args.uid. A new
// group can be named with args.ref for later steps.
func saveGroup(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	g := &ir.BlockTypeGroup{}
	if uid, ok := args["uid"].(string); ok {
		uid = h.groupUID(uid)
		existing, err := h.store.GroupByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.NewNotFoundError("group", "uid "+uid)
		}
		if err != nil {
			return nil, err
		}
		g = existing
	}
	if fieldHandle, ok := args["field"].(string); ok {
		field, err := h.store.FieldByHandle(ctx, fieldHandle)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.NewNotFoundError("field", "handle "+fieldHandle)
		}
		if err != nil {
			return nil, err
		}
		g.FieldID = field.ID
	}
	if name, ok := args["name"].(string); ok {
		g.Name = name
	}
	if v, ok := args["alwaysShowDropdown"].(bool); ok {
		g.AlwaysShowDropdown = &v
	}
	if v, ok, err := optionalInt(args, "sortOrder"); err != nil {
		return nil, err
	} else if ok {
		g.SortOrder = v
	}

	if _, err := h.service.SaveGroup(ctx, g); err != nil {
		return nil, err
	}
	if ref, ok := args["ref"].(string); ok {
		h.groupRefs[ref] = g.UID
	}
	return map[string]any{"uid": g.UID, "sortOrder": g.SortOrder}, nil
}

func deleteGroup(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	uid, err := requireString(args, "uid")
	if err != nil {
		return nil, err
	}
	uid = h.groupUID(uid)
	g, err := h.store.GroupByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError("group", "uid "+uid)
	}
	if err != nil {
		return nil, err
	}
	_, err = h.service.DeleteGroup(ctx, g)
	return nil, err
}

// createBlock creates a block of args.type in args.site for args.owner
// (default 1). args.parent names a block created earlier with args.ref.
func createBlock(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	typeHandle, err := requireString(args, "type")
	if err != nil {
		return nil, err
	}
	siteHandle, err := requireString(args, "site")
	if err != nil {
		return nil, err
	}
	bt, err := h.service.GetByHandle(ctx, typeHandle)
	if err != nil {
		return nil, err
	}
	siteID, ok, err := h.store.SiteIDByHandle(ctx, siteHandle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engine.NewNotFoundError("site", "handle "+siteHandle)
	}

	nb := blocktypes.NewBlock{OwnerID: 1, FieldID: bt.FieldID, SiteID: siteID, TypeID: bt.ID}
	if v, ok, err := optionalInt(args, "owner"); err != nil {
		return nil, err
	} else if ok {
		nb.OwnerID = int64(v)
	}
	if v, ok, err := optionalInt(args, "sortOrder"); err != nil {
		return nil, err
	} else if ok {
		nb.SortOrder = v
	}
	if ref, ok := args["parent"].(string); ok {
		id, ok := h.refs[ref]
		if !ok {
			return nil, fmt.Errorf("unknown block ref %q", ref)
		}
		nb.ParentID = &id
	}

	b, err := h.service.CreateBlock(ctx, nb)
	if err != nil {
		return nil, err
	}
	if ref, ok := args["ref"].(string); ok {
		h.refs[ref] = b.ID
	}
	return map[string]any{"id": b.ID, "level": b.Level, "sortOrder": b.SortOrder}, nil
}

// queryBlocks resolves blocks with args.level (default 1, 0 for the whole
// tree) and args.filters, and reports their type handles in result order.
func queryBlocks(ctx context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	var ra resolver.Args
	if v, ok, err := optionalInt(args, "level"); err != nil {
		return nil, err
	} else if ok {
		ra.Level = &v
	}
	if raw, ok := args["filters"]; ok {
		filters, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filters: expected a map, got %T", raw)
		}
		ra.Filters = filters
	}

	blocks, err := h.resolver.Resolve(ctx, nil, ra)
	if err != nil {
		return nil, err
	}

	ctx = memo.NewContext(ctx, memo.New(h.store))
	types := make([]any, 0, len(blocks))
	for _, b := range blocks {
		bt, err := h.service.GetByID(ctx, b.TypeID)
		if err != nil {
			return nil, err
		}
		if bt == nil {
			types = append(types, fmt.Sprintf("#%d", b.TypeID))
			continue
		}
		types = append(types, bt.Handle)
	}
	return map[string]any{"count": len(blocks), "types": types}, nil
}

// veto makes the before-save listener reject saves of args.handle.
func veto(_ context.Context, h *Harness, args map[string]any) (map[string]any, error) {
	handle, err := requireString(args, "handle")
	if err != nil {
		return nil, err
	}
	h.vetoes.Add(handle)
	return nil, nil
}

// groupUID resolves a group ref to its uid. Anything else is taken as a uid.
func (h *Harness) groupUID(refOrUID string) string {
	if uid, ok := h.groupRefs[refOrUID]; ok {
		return uid
	}
	return refOrUID
}

func requireString(args map[string]any, key string) (string, error) {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// optionalInt reads an integer argument. YAML decodes integers as int; JSON
// style float64 values are accepted when integral.
func optionalInt(args map[string]any, key string) (int, bool, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("%s: %v is not an integer", key, v)
		}
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}
