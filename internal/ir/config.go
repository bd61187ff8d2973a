package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// IconConfig is the icon reference carried in a block type config. It is
// either an asset uid or a volume/folder/filename triple.
type IconConfig struct {
	AssetUID   string `json:"-"`
	Volume     string `json:"volume,omitempty"`
	FolderPath string `json:"folderPath,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// UnmarshalJSON accepts both the string and object forms.
func (c *IconConfig) UnmarshalJSON(data []byte) error {
	var uid string
	if err := json.Unmarshal(data, &uid); err == nil {
		*c = IconConfig{AssetUID: uid}
		return nil
	}
	type plain IconConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("icon: %w", err)
	}
	*c = IconConfig(p)
	return nil
}

// Value returns the config representation.
func (c *IconConfig) Value() any {
	if c == nil {
		return nil
	}
	if c.AssetUID != "" {
		return c.AssetUID
	}
	return map[string]any{
		"volume":     c.Volume,
		"folderPath": c.FolderPath,
		"filename":   c.Filename,
	}
}

// BlockTypeConfig is the typed form of a `<ns>.blockTypes.<uid>` value.
// Optional settings are pointers so that defaults can be told apart from
// explicit zero values.
type BlockTypeConfig struct {
	Field                string                    `json:"field"`
	Group                string                    `json:"group,omitempty"`
	Name                 string                    `json:"name"`
	Handle               string                    `json:"handle"`
	Description          *string                   `json:"description,omitempty"`
	IconFilename         *string                   `json:"iconFilename,omitempty"`
	Icon                 *IconConfig               `json:"icon,omitempty"`
	Color                *string                   `json:"color,omitempty"`
	Enabled              *bool                     `json:"enabled,omitempty"`
	IgnorePermissions    *bool                     `json:"ignorePermissions,omitempty"`
	MinBlocks            *int                      `json:"minBlocks,omitempty"`
	MaxBlocks            *int                      `json:"maxBlocks,omitempty"`
	MinSiblingBlocks     *int                      `json:"minSiblingBlocks,omitempty"`
	MaxSiblingBlocks     *int                      `json:"maxSiblingBlocks,omitempty"`
	MinChildBlocks       *int                      `json:"minChildBlocks,omitempty"`
	MaxChildBlocks       *int                      `json:"maxChildBlocks,omitempty"`
	GroupChildBlockTypes *bool                     `json:"groupChildBlockTypes,omitempty"`
	ChildBlocks          ChildBlocks               `json:"childBlocks"`
	TopLevel             *bool                     `json:"topLevel,omitempty"`
	Conditions           map[string]any            `json:"conditions,omitempty"`
	SortOrder            *int                      `json:"sortOrder,omitempty"`
	FieldLayouts         map[string]map[string]any `json:"fieldLayouts,omitempty"`
}

// GroupConfig is the typed form of a `<ns>.blockTypeGroups.<uid>` value.
type GroupConfig struct {
	Field              string `json:"field"`
	Name               string `json:"name"`
	AlwaysShowDropdown *bool  `json:"alwaysShowDropdown,omitempty"`
	SortOrder          *int   `json:"sortOrder,omitempty"`
}

// DecodeBlockTypeConfig normalizes a raw config value. A nil value means the
// block type was removed and yields a nil config.
func DecodeBlockTypeConfig(raw any) (*BlockTypeConfig, error) {
	if raw == nil {
		return nil, nil
	}
	var cfg BlockTypeConfig
	if err := decodeRaw(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode block type config: %w", err)
	}
	if cfg.Field == "" {
		return nil, fmt.Errorf("decode block type config: field is required")
	}
	if cfg.Handle == "" {
		return nil, fmt.Errorf("decode block type config: handle is required")
	}
	if len(cfg.FieldLayouts) > 1 {
		return nil, fmt.Errorf("decode block type config: expected at most one field layout, got %d", len(cfg.FieldLayouts))
	}
	return &cfg, nil
}

// DecodeGroupConfig normalizes a raw group config value. nil yields nil.
func DecodeGroupConfig(raw any) (*GroupConfig, error) {
	if raw == nil {
		return nil, nil
	}
	var cfg GroupConfig
	if err := decodeRaw(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode group config: %w", err)
	}
	if cfg.Field == "" {
		return nil, fmt.Errorf("decode group config: field is required")
	}
	return &cfg, nil
}

// DecodeOrderList normalizes a raw `<ns>.orders.<field>` value.
func DecodeOrderList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("order[%d]: expected string, got %T", i, elem)
			}
			out[i] = s
		}
		return out, nil
	case map[string]any:
		// Numeric-keyed maps appear when single slots were written sparsely.
		return orderFromIndexedMap(v)
	default:
		return nil, fmt.Errorf("order list: unsupported type %T", raw)
	}
}

func orderFromIndexedMap(m map[string]any) ([]string, error) {
	type slot struct {
		idx   int
		token string
	}
	slots := make([]slot, 0, len(m))
	for k, v := range m {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
			return nil, fmt.Errorf("order list: non-numeric index %q", k)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("order[%s]: expected string, got %T", k, v)
		}
		slots = append(slots, slot{idx, s})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].idx < slots[j].idx })
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.token
	}
	return out, nil
}

// decodeRaw accepts an already-decoded map or a JSON-encoded string.
func decodeRaw(raw any, dst any) error {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = b
	}
	return json.Unmarshal(data, dst)
}

// Apply copies the config's settings onto bt, filling the defaults used for
// settings a config leaves out. Identity columns (id, field, group, layout,
// icon asset, sort order) are resolved by the caller.
func (c *BlockTypeConfig) Apply(bt *BlockType) error {
	conds, err := c.encodedConditions()
	if err != nil {
		return err
	}
	bt.Name = c.Name
	bt.Handle = c.Handle
	bt.Description = strOr(c.Description, "")
	bt.Icon.Filename = strOr(c.IconFilename, "")
	bt.Color = ParseColor(strOr(c.Color, ""))
	bt.Enabled = boolOr(c.Enabled, true)
	bt.IgnorePermissions = boolOr(c.IgnorePermissions, true)
	bt.MinBlocks = intOr(c.MinBlocks, 0)
	bt.MaxBlocks = intOr(c.MaxBlocks, 0)
	bt.MinSiblingBlocks = intOr(c.MinSiblingBlocks, 0)
	bt.MaxSiblingBlocks = intOr(c.MaxSiblingBlocks, 0)
	bt.MinChildBlocks = intOr(c.MinChildBlocks, 0)
	bt.MaxChildBlocks = intOr(c.MaxChildBlocks, 0)
	bt.GroupChildBlockTypes = boolOr(c.GroupChildBlockTypes, true)
	bt.ChildBlocks = c.ChildBlocks
	bt.TopLevel = boolOr(c.TopLevel, true)
	bt.Conditions = conds
	return nil
}

// encodedConditions stores each condition as its JSON text keyed by element kind.
func (c *BlockTypeConfig) encodedConditions() (map[string]string, error) {
	if len(c.Conditions) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(c.Conditions))
	for kind, cond := range c.Conditions {
		if s, ok := cond.(string); ok {
			out[kind] = s
			continue
		}
		b, err := MarshalCanonical(cond)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", kind, err)
		}
		out[kind] = string(b)
	}
	return out, nil
}

// FieldLayout returns the single embedded layout uid and config, if any.
func (c *BlockTypeConfig) FieldLayout() (uid string, config map[string]any, ok bool) {
	for k, v := range c.FieldLayouts {
		return k, v, true
	}
	return "", nil, false
}

// Map returns the config as the generic value stored in the config tree.
// Numbers are ints so the value round-trips through canonical JSON.
func (c *BlockTypeConfig) Map() map[string]any {
	m := map[string]any{
		"field":                c.Field,
		"name":                 c.Name,
		"handle":               c.Handle,
		"description":          strOr(c.Description, ""),
		"iconFilename":         strOr(c.IconFilename, ""),
		"enabled":              boolOr(c.Enabled, true),
		"ignorePermissions":    boolOr(c.IgnorePermissions, true),
		"minBlocks":            intOr(c.MinBlocks, 0),
		"maxBlocks":            intOr(c.MaxBlocks, 0),
		"minSiblingBlocks":     intOr(c.MinSiblingBlocks, 0),
		"maxSiblingBlocks":     intOr(c.MaxSiblingBlocks, 0),
		"minChildBlocks":       intOr(c.MinChildBlocks, 0),
		"maxChildBlocks":       intOr(c.MaxChildBlocks, 0),
		"groupChildBlockTypes": boolOr(c.GroupChildBlockTypes, true),
		"childBlocks":          c.ChildBlocks.Value(),
		"topLevel":             boolOr(c.TopLevel, true),
	}
	if c.Group != "" {
		m["group"] = c.Group
	}
	if c.Color != nil && *c.Color != "" {
		m["color"] = *c.Color
	}
	if c.Icon != nil {
		m["icon"] = c.Icon.Value()
	}
	if len(c.Conditions) > 0 {
		m["conditions"] = c.Conditions
	}
	if c.SortOrder != nil {
		m["sortOrder"] = *c.SortOrder
	}
	if len(c.FieldLayouts) > 0 {
		layouts := make(map[string]any, len(c.FieldLayouts))
		for uid, cfg := range c.FieldLayouts {
			layouts[uid] = cfg
		}
		m["fieldLayouts"] = layouts
	}
	return m
}

// Map returns the group config as a config tree value.
func (c *GroupConfig) Map() map[string]any {
	m := map[string]any{
		"field": c.Field,
		"name":  c.Name,
	}
	if c.AlwaysShowDropdown != nil {
		m["alwaysShowDropdown"] = *c.AlwaysShowDropdown
	}
	if c.SortOrder != nil {
		m["sortOrder"] = *c.SortOrder
	}
	return m
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Ptr returns a pointer to v. Handy for building configs in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
