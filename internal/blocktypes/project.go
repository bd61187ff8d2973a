package blocktypes

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/blockcfg/internal/ir"
)

// ApplyProjectConfig applies a whole config snapshot as an external change.
// The snapshot's top-level "fields" (uid to {handle, type}) and "sites"
// entries are upserted first so block types can resolve them. Fields and
// sites missing from the snapshot are left alone.
func (s *Service) ApplyProjectConfig(ctx context.Context, snapshot map[string]any) error {
	fields, err := decodeFields(snapshot["fields"])
	if err != nil {
		return err
	}
	sites, err := decodeSites(snapshot["sites"])
	if err != nil {
		return err
	}

	for _, f := range fields {
		if _, err := s.store.UpsertField(ctx, f); err != nil {
			return fmt.Errorf("field %s: %w", f.UID, err)
		}
	}
	for _, handle := range sites {
		if _, err := s.store.UpsertSite(ctx, handle); err != nil {
			return fmt.Errorf("site %s: %w", handle, err)
		}
	}
	return s.config.ApplyExternal(ctx, snapshot)
}

func decodeFields(raw any) ([]ir.Field, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fields: expected a map, got %T", raw)
	}
	uids := make([]string, 0, len(m))
	for uid := range m {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	out := make([]ir.Field, 0, len(uids))
	for _, uid := range uids {
		entry, ok := m[uid].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("fields.%s: expected a map, got %T", uid, m[uid])
		}
		handle, _ := entry["handle"].(string)
		if handle == "" {
			return nil, fmt.Errorf("fields.%s: handle is required", uid)
		}
		typ, _ := entry["type"].(string)
		out = append(out, ir.Field{UID: uid, Handle: handle, Type: typ})
	}
	return out, nil
}

func decodeSites(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, s := range v {
			h, ok := s.(string)
			if !ok || h == "" {
				return nil, fmt.Errorf("sites[%d]: expected a handle, got %v", i, s)
			}
			out = append(out, h)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("sites: expected a list, got %T", raw)
	}
}
