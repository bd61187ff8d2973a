package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/blockcfg/internal/ir"
)

const groupColumns = `id, field_id, name, always_show_dropdown, sort_order, uid`

// GroupByID retrieves a block type group. Returns sql.ErrNoRows if not found.
func (q *Queries) GroupByID(ctx context.Context, id int64) (*ir.BlockTypeGroup, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM block_type_groups WHERE id = ?`, id)
	return scanGroup(row)
}

// GroupByUID retrieves a block type group. Returns sql.ErrNoRows if not found.
func (q *Queries) GroupByUID(ctx context.Context, uid string) (*ir.BlockTypeGroup, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM block_type_groups WHERE uid = ?`, uid)
	return scanGroup(row)
}

// GroupIDByUID resolves a group uid. ok is false when no group has the uid.
func (q *Queries) GroupIDByUID(ctx context.Context, uid string) (int64, bool, error) {
	return q.idByUID(ctx, "block_type_groups", uid)
}

// GroupsByField returns a field's groups in sort order.
func (q *Queries) GroupsByField(ctx context.Context, fieldID int64) ([]*ir.BlockTypeGroup, error) {
	return q.queryGroups(ctx, `
		SELECT `+groupColumns+` FROM block_type_groups
		WHERE field_id = ? ORDER BY sort_order ASC, id ASC`, fieldID)
}

// GroupsInFieldOfID returns every group of the field that owns group id.
func (q *Queries) GroupsInFieldOfID(ctx context.Context, id int64) ([]*ir.BlockTypeGroup, error) {
	return q.queryGroups(ctx, `
		SELECT `+groupColumns+` FROM block_type_groups
		WHERE field_id = (SELECT field_id FROM block_type_groups WHERE id = ?)
		ORDER BY sort_order ASC, id ASC`, id)
}

// AllGroups returns the groups of every field of the given type.
func (q *Queries) AllGroups(ctx context.Context, fieldType string) ([]*ir.BlockTypeGroup, error) {
	return q.queryGroups(ctx, `
		SELECT g.id, g.field_id, g.name, g.always_show_dropdown, g.sort_order, g.uid
		FROM block_type_groups g
		INNER JOIN fields f ON f.id = g.field_id
		WHERE f.type = ?
		ORDER BY g.field_id ASC, g.sort_order ASC, g.id ASC`, fieldType)
}

// UpsertGroup inserts a group or updates the row with the same uid, then
// sets g.ID.
func (q *Queries) UpsertGroup(ctx context.Context, g *ir.BlockTypeGroup) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO block_type_groups (field_id, name, always_show_dropdown, sort_order, uid)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			field_id = excluded.field_id,
			name = excluded.name,
			always_show_dropdown = excluded.always_show_dropdown,
			sort_order = excluded.sort_order
	`, g.FieldID, g.Name, nullBool(g.AlwaysShowDropdown), g.SortOrder, g.UID)
	if err != nil {
		return fmt.Errorf("upsert group %q: %w", g.Name, err)
	}

	id, ok, err := q.GroupIDByUID(ctx, g.UID)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	if !ok {
		return fmt.Errorf("upsert group: %s missing after insert", g.UID)
	}
	g.ID = id
	return nil
}

// DeleteGroupByUID removes a group. Block types in it keep existing with
// their group_id cleared by the foreign key. Deleting a missing group is
// not an error.
func (q *Queries) DeleteGroupByUID(ctx context.Context, uid string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM block_type_groups WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// DeleteGroupsByField removes every group of a field.
func (q *Queries) DeleteGroupsByField(ctx context.Context, fieldID int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM block_type_groups WHERE field_id = ?`, fieldID); err != nil {
		return fmt.Errorf("delete groups by field: %w", err)
	}
	return nil
}

// SetGroupSortOrder writes sort_order for the group with uid.
func (q *Queries) SetGroupSortOrder(ctx context.Context, uid string, sortOrder int) (found bool, err error) {
	return q.setSortOrder(ctx, "block_type_groups", uid, sortOrder)
}

func (q *Queries) queryGroups(ctx context.Context, query string, args ...any) ([]*ir.BlockTypeGroup, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	out := []*ir.BlockTypeGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return out, nil
}

func scanGroup(s rowScanner) (*ir.BlockTypeGroup, error) {
	var (
		g    ir.BlockTypeGroup
		show sql.NullBool
	)
	if err := s.Scan(&g.ID, &g.FieldID, &g.Name, &show, &g.SortOrder, &g.UID); err != nil {
		return nil, err
	}
	g.AlwaysShowDropdown = boolPtr(show)
	return &g, nil
}
