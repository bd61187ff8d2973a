package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/blockcfg/internal/ir"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedField inserts a field and returns its id.
func seedField(t *testing.T, s *Store, uid, handle string) int64 {
	t.Helper()
	id, err := s.UpsertField(context.Background(), ir.Field{UID: uid, Handle: handle})
	if err != nil {
		t.Fatalf("UpsertField() failed: %v", err)
	}
	return id
}

// seedBlockType inserts a block type with defaults filled in.
func seedBlockType(t *testing.T, s *Store, fieldID int64, uid, handle string, sortOrder int) *ir.BlockType {
	t.Helper()
	bt := createTestBlockType(fieldID, uid, handle)
	bt.SortOrder = sortOrder
	if err := s.UpsertBlockType(context.Background(), bt); err != nil {
		t.Fatalf("UpsertBlockType(%s) failed: %v", handle, err)
	}
	return bt
}

// createTestBlockType builds a block type carrying config defaults.
func createTestBlockType(fieldID int64, uid, handle string) *ir.BlockType {
	return &ir.BlockType{
		FieldID:              fieldID,
		Name:                 handle,
		Handle:               handle,
		Enabled:              true,
		IgnorePermissions:    true,
		GroupChildBlockTypes: true,
		TopLevel:             true,
		ChildBlocks:          ir.NoChildBlocks(),
		UID:                  uid,
	}
}
