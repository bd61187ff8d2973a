package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/blockcfg/internal/ir"
)

// marshalLayoutConfig converts a layout config to canonical JSON TEXT so that
// re-saving an identical layout writes identical bytes.
func marshalLayoutConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal layout config: %w", err)
	}
	return string(data), nil
}

// marshalChildBlocks stores "no children" as NULL, "*" as the JSON string and
// handle sets as a sorted JSON array.
func marshalChildBlocks(cb ir.ChildBlocks) (sql.NullString, error) {
	if cb.Mode() == ir.ChildBlocksNone {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(cb)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal child blocks: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalChildBlocks(s sql.NullString) (ir.ChildBlocks, error) {
	if !s.Valid || s.String == "" {
		return ir.NoChildBlocks(), nil
	}
	var cb ir.ChildBlocks
	if err := json.Unmarshal([]byte(s.String), &cb); err != nil {
		// Rows written by older versions may hold a bare "*" or handle.
		return ir.ParseChildBlocks(s.String)
	}
	return cb, nil
}

// marshalConditions stores the element-kind keyed conditions as canonical JSON.
func marshalConditions(conds map[string]string) (sql.NullString, error) {
	if len(conds) == 0 {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(conds)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal conditions: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalConditions(s sql.NullString) (map[string]string, error) {
	if !s.Valid || s.String == "" || s.String == "[]" || s.String == "null" {
		return nil, nil
	}
	var conds map[string]string
	if err := json.Unmarshal([]byte(s.String), &conds); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	return conds, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}
