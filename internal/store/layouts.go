package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/blockcfg/internal/ir"
)

// SaveLayout inserts or updates a field layout and sets layout.ID.
//
// A layout with a non-zero ID is updated in place (keeping its id even if
// the uid changed); otherwise it is upserted by uid.
func (q *Queries) SaveLayout(ctx context.Context, layout *ir.FieldLayout) error {
	configJSON, err := marshalLayoutConfig(layout.Config)
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}

	if layout.ID != 0 {
		res, err := q.db.ExecContext(ctx, `
			UPDATE field_layouts SET uid = ?, type = ?, config = ? WHERE id = ?
		`, layout.UID, layout.Type, configJSON, layout.ID)
		if err != nil {
			return fmt.Errorf("save layout: update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("save layout: rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}
		// The referenced layout is gone; fall through and recreate it.
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO field_layouts (uid, type, config) VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET type = excluded.type, config = excluded.config
	`, layout.UID, layout.Type, configJSON)
	if err != nil {
		return fmt.Errorf("save layout: insert: %w", err)
	}

	id, ok, err := q.idByUID(ctx, "field_layouts", layout.UID)
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	if !ok {
		return fmt.Errorf("save layout: layout %s missing after insert", layout.UID)
	}
	layout.ID = id
	return nil
}

// LayoutByID returns a field layout. Returns sql.ErrNoRows if not found.
func (q *Queries) LayoutByID(ctx context.Context, id int64) (*ir.FieldLayout, error) {
	var (
		layout     ir.FieldLayout
		configJSON string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uid, type, config FROM field_layouts WHERE id = ?
	`, id).Scan(&layout.ID, &layout.UID, &layout.Type, &configJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &layout.Config); err != nil {
		return nil, fmt.Errorf("unmarshal layout config: %w", err)
	}
	return &layout, nil
}

// LayoutExists reports whether a layout row with the id exists.
func (q *Queries) LayoutExists(ctx context.Context, id int64) (bool, error) {
	_, err := q.LayoutByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DeleteLayout removes a field layout. Deleting a missing layout is not an error.
func (q *Queries) DeleteLayout(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM field_layouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete layout: %w", err)
	}
	return nil
}
