package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/blockcfg/internal/ir"
)

// FieldIDByUID resolves a field uid. ok is false when no field has the uid.
func (q *Queries) FieldIDByUID(ctx context.Context, uid string) (id int64, ok bool, err error) {
	return q.idByUID(ctx, "fields", uid)
}

// FieldByHandle returns the field with the given handle.
// Returns sql.ErrNoRows if not found.
func (q *Queries) FieldByHandle(ctx context.Context, handle string) (ir.Field, error) {
	var f ir.Field
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uid, handle, type FROM fields WHERE handle = ?
	`, handle).Scan(&f.ID, &f.UID, &f.Handle, &f.Type)
	return f, err
}

// FieldByID returns the field with the given id.
// Returns sql.ErrNoRows if not found.
func (q *Queries) FieldByID(ctx context.Context, id int64) (ir.Field, error) {
	var f ir.Field
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uid, handle, type FROM fields WHERE id = ?
	`, id).Scan(&f.ID, &f.UID, &f.Handle, &f.Type)
	return f, err
}

// UpsertField inserts a field or updates the one with the same uid.
// Returns the field id.
func (q *Queries) UpsertField(ctx context.Context, f ir.Field) (int64, error) {
	if f.Type == "" {
		f.Type = "blocks"
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO fields (uid, handle, type) VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET handle = excluded.handle, type = excluded.type
	`, f.UID, f.Handle, f.Type)
	if err != nil {
		return 0, fmt.Errorf("upsert field: %w", err)
	}
	id, _, err := q.FieldIDByUID(ctx, f.UID)
	return id, err
}

// DeleteField removes a field. Block types, groups and blocks go with it
// through foreign key cascades; the layouts of its block types are removed
// first because block_types only holds a SET NULL reference to them.
func (q *Queries) DeleteField(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM field_layouts WHERE id IN (
			SELECT field_layout_id FROM block_types
			WHERE field_id = ? AND field_layout_id IS NOT NULL
		)
	`, id)
	if err != nil {
		return fmt.Errorf("delete field layouts: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM fields WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return nil
}

// UpsertSite inserts a site by handle and returns its id.
func (q *Queries) UpsertSite(ctx context.Context, handle string) (int64, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sites (handle) VALUES (?) ON CONFLICT(handle) DO NOTHING
	`, handle)
	if err != nil {
		return 0, fmt.Errorf("upsert site: %w", err)
	}
	var id int64
	if err := q.db.QueryRowContext(ctx, `SELECT id FROM sites WHERE handle = ?`, handle).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert site: select id: %w", err)
	}
	return id, nil
}

// SiteIDByHandle resolves a site handle. ok is false when no site has it.
func (q *Queries) SiteIDByHandle(ctx context.Context, handle string) (id int64, ok bool, err error) {
	err = q.db.QueryRowContext(ctx, `SELECT id FROM sites WHERE handle = ?`, handle).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query site: %w", err)
	}
	return id, true, nil
}

// SiteIDs returns every site id in ascending order.
func (q *Queries) SiteIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM sites ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return ids, nil
}

// Asset is the subset of an asset row used to resolve block type icons.
type Asset struct {
	ID         int64
	UID        string
	VolumeUID  string
	FolderPath string
	Filename   string
}

// UpsertAsset inserts or updates an asset by uid and returns its id.
func (q *Queries) UpsertAsset(ctx context.Context, a Asset) (int64, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO assets (uid, volume_uid, folder_path, filename) VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			volume_uid = excluded.volume_uid,
			folder_path = excluded.folder_path,
			filename = excluded.filename
	`, a.UID, a.VolumeUID, a.FolderPath, a.Filename)
	if err != nil {
		return 0, fmt.Errorf("upsert asset: %w", err)
	}
	id, _, err := q.idByUID(ctx, "assets", a.UID)
	return id, err
}

// AssetIDByUID resolves an asset uid.
func (q *Queries) AssetIDByUID(ctx context.Context, uid string) (int64, bool, error) {
	return q.idByUID(ctx, "assets", uid)
}

// AssetUIDByID returns the uid of an asset. ok is false when no asset has the id.
func (q *Queries) AssetUIDByID(ctx context.Context, id int64) (uid string, ok bool, err error) {
	err = q.db.QueryRowContext(ctx, `SELECT uid FROM assets WHERE id = ?`, id).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query asset uid: %w", err)
	}
	return uid, true, nil
}

// AssetIDByLocation resolves an asset by volume, folder and filename.
func (q *Queries) AssetIDByLocation(ctx context.Context, volumeUID, folderPath, filename string) (int64, bool, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id FROM assets WHERE volume_uid = ? AND folder_path = ? AND filename = ?
	`, volumeUID, folderPath, filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query asset: %w", err)
	}
	return id, true, nil
}

// idByUID looks up the id of a row by uid in one of the uid-keyed tables.
// table is always a constant from this package.
func (q *Queries) idByUID(ctx context.Context, table, uid string) (int64, bool, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE uid = ?`, uid).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query %s by uid: %w", table, err)
	}
	return id, true, nil
}
