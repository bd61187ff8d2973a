package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/blockcfg/internal/ir"
)

const blockTypeColumns = `
	bt.id, bt.field_id, bt.field_layout_id, bt.group_id, bt.name, bt.handle,
	bt.description, bt.icon_filename, bt.icon_id, bt.color, bt.enabled,
	bt.ignore_permissions, bt.min_blocks, bt.max_blocks, bt.min_sibling_blocks,
	bt.max_sibling_blocks, bt.min_child_blocks, bt.max_child_blocks,
	bt.group_child_block_types, bt.child_blocks, bt.top_level, bt.conditions,
	bt.sort_order, bt.uid`

// Deterministic ordering for every block type listing.
const blockTypeOrder = ` ORDER BY bt.sort_order ASC, bt.id ASC`

// BlockTypeByID retrieves a block type. Returns sql.ErrNoRows if not found.
func (q *Queries) BlockTypeByID(ctx context.Context, id int64) (*ir.BlockType, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+blockTypeColumns+` FROM block_types bt WHERE bt.id = ?`, id)
	return scanBlockType(row)
}

// BlockTypeByUID retrieves a block type. Returns sql.ErrNoRows if not found.
func (q *Queries) BlockTypeByUID(ctx context.Context, uid string) (*ir.BlockType, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+blockTypeColumns+` FROM block_types bt WHERE bt.uid = ?`, uid)
	return scanBlockType(row)
}

// BlockTypeByHandle retrieves the first block type with the handle across
// all fields. Returns sql.ErrNoRows if not found.
func (q *Queries) BlockTypeByHandle(ctx context.Context, handle string) (*ir.BlockType, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+blockTypeColumns+` FROM block_types bt WHERE bt.handle = ?`+blockTypeOrder+` LIMIT 1`, handle)
	return scanBlockType(row)
}

// BlockTypesByField returns a field's block types in sort order.
// Returns an empty slice (not nil) if the field has none.
func (q *Queries) BlockTypesByField(ctx context.Context, fieldID int64) ([]*ir.BlockType, error) {
	return q.queryBlockTypes(ctx, `SELECT `+blockTypeColumns+` FROM block_types bt WHERE bt.field_id = ?`+blockTypeOrder, fieldID)
}

// BlockTypesInFieldOfID returns every block type of the field that owns the
// block type with the given id, so one round trip can populate every cache
// index for that field. Empty when the id is unknown.
func (q *Queries) BlockTypesInFieldOfID(ctx context.Context, id int64) ([]*ir.BlockType, error) {
	return q.queryBlockTypes(ctx, `
		SELECT `+blockTypeColumns+` FROM block_types bt
		WHERE bt.field_id = (SELECT field_id FROM block_types WHERE id = ?)`+blockTypeOrder, id)
}

// BlockTypesInFieldOfHandle is BlockTypesInFieldOfID keyed by handle.
func (q *Queries) BlockTypesInFieldOfHandle(ctx context.Context, handle string) ([]*ir.BlockType, error) {
	return q.queryBlockTypes(ctx, `
		SELECT `+blockTypeColumns+` FROM block_types bt
		WHERE bt.field_id = (
			SELECT field_id FROM block_types WHERE handle = ? ORDER BY sort_order ASC, id ASC LIMIT 1
		)`+blockTypeOrder, handle)
}

// AllBlockTypes returns the block types of every field of the given type.
func (q *Queries) AllBlockTypes(ctx context.Context, fieldType string) ([]*ir.BlockType, error) {
	return q.queryBlockTypes(ctx, `
		SELECT `+blockTypeColumns+` FROM block_types bt
		INNER JOIN fields f ON f.id = bt.field_id
		WHERE f.type = ?
		ORDER BY bt.field_id ASC, bt.sort_order ASC, bt.id ASC`, fieldType)
}

// UpsertBlockType inserts a block type or updates the row with the same uid,
// then sets bt.ID. Re-applying identical values leaves the row unchanged.
func (q *Queries) UpsertBlockType(ctx context.Context, bt *ir.BlockType) error {
	childBlocks, err := marshalChildBlocks(bt.ChildBlocks)
	if err != nil {
		return fmt.Errorf("upsert block type: %w", err)
	}
	conditions, err := marshalConditions(bt.Conditions)
	if err != nil {
		return fmt.Errorf("upsert block type: %w", err)
	}
	var color sql.NullString
	if bt.Color != "" {
		color = sql.NullString{String: string(bt.Color), Valid: true}
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO block_types (
			field_id, field_layout_id, group_id, name, handle, description,
			icon_filename, icon_id, color, enabled, ignore_permissions,
			min_blocks, max_blocks, min_sibling_blocks, max_sibling_blocks,
			min_child_blocks, max_child_blocks, group_child_block_types,
			child_blocks, top_level, conditions, sort_order, uid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			field_id = excluded.field_id,
			field_layout_id = excluded.field_layout_id,
			group_id = excluded.group_id,
			name = excluded.name,
			handle = excluded.handle,
			description = excluded.description,
			icon_filename = excluded.icon_filename,
			icon_id = excluded.icon_id,
			color = excluded.color,
			enabled = excluded.enabled,
			ignore_permissions = excluded.ignore_permissions,
			min_blocks = excluded.min_blocks,
			max_blocks = excluded.max_blocks,
			min_sibling_blocks = excluded.min_sibling_blocks,
			max_sibling_blocks = excluded.max_sibling_blocks,
			min_child_blocks = excluded.min_child_blocks,
			max_child_blocks = excluded.max_child_blocks,
			group_child_block_types = excluded.group_child_block_types,
			child_blocks = excluded.child_blocks,
			top_level = excluded.top_level,
			conditions = excluded.conditions,
			sort_order = excluded.sort_order
	`,
		bt.FieldID, nullInt64(bt.FieldLayoutID), nullInt64(bt.GroupID), bt.Name, bt.Handle, bt.Description,
		bt.Icon.Filename, nullInt64(bt.Icon.AssetID), color, bt.Enabled, bt.IgnorePermissions,
		bt.MinBlocks, bt.MaxBlocks, bt.MinSiblingBlocks, bt.MaxSiblingBlocks,
		bt.MinChildBlocks, bt.MaxChildBlocks, bt.GroupChildBlockTypes,
		childBlocks, bt.TopLevel, conditions, bt.SortOrder, bt.UID,
	)
	if err != nil {
		return fmt.Errorf("upsert block type %q: %w", bt.Handle, err)
	}

	id, ok, err := q.idByUID(ctx, "block_types", bt.UID)
	if err != nil {
		return fmt.Errorf("upsert block type: %w", err)
	}
	if !ok {
		return fmt.Errorf("upsert block type: %s missing after insert", bt.UID)
	}
	bt.ID = id
	return nil
}

// DeleteBlockType removes a block type row by id.
func (q *Queries) DeleteBlockType(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM block_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete block type: %w", err)
	}
	return nil
}

// SetBlockTypeSortOrder writes sort_order for the block type with uid.
// found is false when no row has the uid.
func (q *Queries) SetBlockTypeSortOrder(ctx context.Context, uid string, sortOrder int) (found bool, err error) {
	return q.setSortOrder(ctx, "block_types", uid, sortOrder)
}

func (q *Queries) setSortOrder(ctx context.Context, table, uid string, sortOrder int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ? WHERE uid = ?`, sortOrder, uid)
	if err != nil {
		return false, fmt.Errorf("set %s sort order: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set %s sort order: rows affected: %w", table, err)
	}
	return n > 0, nil
}

func (q *Queries) queryBlockTypes(ctx context.Context, query string, args ...any) ([]*ir.BlockType, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query block types: %w", err)
	}
	defer rows.Close()

	out := []*ir.BlockType{}
	for rows.Next() {
		bt, err := scanBlockType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block types: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlockType(s rowScanner) (*ir.BlockType, error) {
	var (
		bt          ir.BlockType
		layoutID    sql.NullInt64
		groupID     sql.NullInt64
		iconID      sql.NullInt64
		color       sql.NullString
		childBlocks sql.NullString
		conditions  sql.NullString
	)
	err := s.Scan(
		&bt.ID, &bt.FieldID, &layoutID, &groupID, &bt.Name, &bt.Handle,
		&bt.Description, &bt.Icon.Filename, &iconID, &color, &bt.Enabled,
		&bt.IgnorePermissions, &bt.MinBlocks, &bt.MaxBlocks, &bt.MinSiblingBlocks,
		&bt.MaxSiblingBlocks, &bt.MinChildBlocks, &bt.MaxChildBlocks,
		&bt.GroupChildBlockTypes, &childBlocks, &bt.TopLevel, &conditions,
		&bt.SortOrder, &bt.UID,
	)
	if err != nil {
		// Callers check sql.ErrNoRows, so return it unwrapped.
		return nil, err
	}

	bt.FieldLayoutID = int64Ptr(layoutID)
	bt.GroupID = int64Ptr(groupID)
	bt.Icon.AssetID = int64Ptr(iconID)
	bt.Color = ir.ParseColor(color.String)

	if bt.ChildBlocks, err = unmarshalChildBlocks(childBlocks); err != nil {
		return nil, fmt.Errorf("block type %d: %w", bt.ID, err)
	}
	if bt.Conditions, err = unmarshalConditions(conditions); err != nil {
		return nil, fmt.Errorf("block type %d: %w", bt.ID, err)
	}
	return &bt, nil
}
