package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/blockcfg/internal/ir"
)

const blockColumns = `id, owner_id, field_id, type_id, site_id, parent_id, level, sort_order`

// BlockQuery filters a block listing. Nil members are unconstrained.
type BlockQuery struct {
	ID       *int64
	OwnerID  *int64
	FieldID  *int64
	SiteID   *int64
	TypeID   *int64
	ParentID *int64
	// Level restricts results to one nesting level. Nil means every level.
	Level *int
}

// CacheKey renders the query as a stable string for element query caches.
func (bq BlockQuery) CacheKey() string {
	var b strings.Builder
	b.WriteString("blocks")
	for _, c := range bq.conditions() {
		fmt.Fprintf(&b, "|%s=%v", c.column, c.value)
	}
	return b.String()
}

type condition struct {
	column string
	value  any
}

func (bq BlockQuery) conditions() []condition {
	var conds []condition
	add := func(column string, p *int64) {
		if p != nil {
			conds = append(conds, condition{column, *p})
		}
	}
	add("id", bq.ID)
	add("owner_id", bq.OwnerID)
	add("field_id", bq.FieldID)
	add("site_id", bq.SiteID)
	add("type_id", bq.TypeID)
	add("parent_id", bq.ParentID)
	if bq.Level != nil {
		conds = append(conds, condition{"level", *bq.Level})
	}
	return conds
}

// CreateBlock inserts a block and sets b.ID.
func (q *Queries) CreateBlock(ctx context.Context, b *ir.Block) error {
	if b.Level == 0 {
		b.Level = 1
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO blocks (owner_id, field_id, type_id, site_id, parent_id, level, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.OwnerID, b.FieldID, b.TypeID, b.SiteID, nullInt64(b.ParentID), b.Level, b.SortOrder)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create block: last insert id: %w", err)
	}
	b.ID = id
	return nil
}

// BlockByID returns a block. Returns sql.ErrNoRows if not found.
func (q *Queries) BlockByID(ctx context.Context, id int64) (*ir.Block, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id)
	return scanBlock(row)
}

// QueryBlocks returns the blocks matching bq ordered by level, then sort
// order, then id. Returns an empty slice (not nil) when nothing matches.
func (q *Queries) QueryBlocks(ctx context.Context, bq BlockQuery) ([]*ir.Block, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range bq.conditions() {
		where = append(where, c.column+" = ?")
		args = append(args, c.value)
	}
	query := `SELECT ` + blockColumns + ` FROM blocks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY level ASC, sort_order ASC, id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	out := []*ir.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return out, nil
}

// CountChildren returns how many blocks sit directly under parentID.
func (q *Queries) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks WHERE parent_id = ?`, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// DeleteBlocksByType deletes every block of a type within one site, deepest
// level first, one row at a time. Descendants of other types go with their
// parent through the parent_id cascade. Returns the number of rows matched.
func (q *Queries) DeleteBlocksByType(ctx context.Context, siteID, typeID int64) (int, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id FROM blocks WHERE site_id = ? AND type_id = ?
		ORDER BY level DESC, id DESC
	`, siteID, typeID)
	if err != nil {
		return 0, fmt.Errorf("delete blocks by type: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("delete blocks by type: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("delete blocks by type: iterate: %w", err)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete block %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func scanBlock(s rowScanner) (*ir.Block, error) {
	var (
		b        ir.Block
		parentID sql.NullInt64
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.FieldID, &b.TypeID, &b.SiteID, &parentID, &b.Level, &b.SortOrder); err != nil {
		return nil, err
	}
	b.ParentID = int64Ptr(parentID)
	return &b, nil
}
