package ir

import "fmt"

// ElementKindBlock is the element kind used when invalidating element caches
// after a block type changes.
const ElementKindBlock = "block"

// Field is the owning content field of block types and groups.
// Only the identity columns are modelled; everything else is external.
type Field struct {
	ID     int64  `json:"id"`
	UID    string `json:"uid"`
	Handle string `json:"handle"`
	Type   string `json:"type"`
}

// FieldLayout is the opaque field layout sub-record owned by a block type.
type FieldLayout struct {
	ID     int64          `json:"id"`
	UID    string         `json:"uid"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// Icon references a block type's icon, either as a file in the configured
// icon folder or as an asset.
type Icon struct {
	Filename string `json:"filename,omitempty"`
	AssetID  *int64 `json:"asset_id,omitempty"`
}

// BlockType is a named, constrained definition of one kind of block.
type BlockType struct {
	ID                   int64             `json:"id"`
	FieldID              int64             `json:"field_id" validate:"gt=0"`
	GroupID              *int64            `json:"group_id,omitempty"`
	FieldLayoutID        *int64            `json:"field_layout_id,omitempty"`
	Name                 string            `json:"name" validate:"required,max=255"`
	Handle               string            `json:"handle" validate:"required,max=255,handle"`
	Description          string            `json:"description"`
	Enabled              bool              `json:"enabled"`
	IgnorePermissions    bool              `json:"ignore_permissions"`
	MinBlocks            int               `json:"min_blocks" validate:"gte=0"`
	MaxBlocks            int               `json:"max_blocks" validate:"gte=0"`
	MinSiblingBlocks     int               `json:"min_sibling_blocks" validate:"gte=0"`
	MaxSiblingBlocks     int               `json:"max_sibling_blocks" validate:"gte=0"`
	MinChildBlocks       int               `json:"min_child_blocks" validate:"gte=0"`
	MaxChildBlocks       int               `json:"max_child_blocks" validate:"gte=0"`
	GroupChildBlockTypes bool              `json:"group_child_block_types"`
	ChildBlocks          ChildBlocks       `json:"child_blocks"`
	TopLevel             bool              `json:"top_level"`
	Conditions           map[string]string `json:"conditions,omitempty"`
	Icon                 Icon              `json:"icon"`
	Color                Color             `json:"color,omitempty" validate:"omitempty,color"`
	SortOrder            int               `json:"sort_order" validate:"gte=0"`
	UID                  string            `json:"uid"`
}

// IsNew reports whether the block type has not been persisted yet.
func (b *BlockType) IsNew() bool {
	return b.ID == 0
}

// String returns the handle, which is how block types are referred to in
// logs and error messages.
func (b *BlockType) String() string {
	return b.Handle
}

// AllowsChild reports whether a block of the given handle may be created
// directly beneath a block of this type.
func (b *BlockType) AllowsChild(handle string) bool {
	return b.ChildBlocks.Allows(handle)
}

// BlockTypeGroup is an organizational bucket for block types within a field.
type BlockTypeGroup struct {
	ID      int64  `json:"id"`
	FieldID int64  `json:"field_id" validate:"gt=0"`
	Name    string `json:"name" validate:"max=255"`
	// AlwaysShowDropdown is nil when the group inherits the global setting.
	AlwaysShowDropdown *bool  `json:"always_show_dropdown,omitempty"`
	SortOrder          int    `json:"sort_order" validate:"gte=0"`
	UID                string `json:"uid"`
}

// IsNew reports whether the group has not been persisted yet.
func (g *BlockTypeGroup) IsNew() bool {
	return g.ID == 0
}

// ShowDropdown resolves AlwaysShowDropdown against the global default.
func (g *BlockTypeGroup) ShowDropdown(globalDefault bool) bool {
	if g.AlwaysShowDropdown == nil {
		return globalDefault
	}
	return *g.AlwaysShowDropdown
}

// Block is a single block element instance.
type Block struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	FieldID   int64  `json:"field_id"`
	TypeID    int64  `json:"type_id"`
	SiteID    int64  `json:"site_id"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Level     int    `json:"level"`
	SortOrder int    `json:"sort_order"`

	memoized []*Block
}

// UseMemoized attaches a pre-fetched result set to the block so that child
// lookups can be answered without another query.
func (b *Block) UseMemoized(all []*Block) {
	b.memoized = all
}

// Memoized returns the attached result set, or nil when none was attached.
func (b *Block) Memoized() []*Block {
	return b.memoized
}

// String implements fmt.Stringer.
func (b *Block) String() string {
	return fmt.Sprintf("block#%d(type=%d,level=%d)", b.ID, b.TypeID, b.Level)
}
