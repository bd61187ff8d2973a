package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"fields", "sites", "assets", "field_layouts", "block_type_groups", "block_types", "blocks"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fieldID := seedField(t, s, "field-1", "content")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q *Queries) error {
		if err := q.UpsertBlockType(ctx, createTestBlockType(fieldID, "bt-1", "text")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	types, err := s.BlockTypesByField(ctx, fieldID)
	if err != nil {
		t.Fatalf("BlockTypesByField() failed: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("got %d block types after rollback, want 0", len(types))
	}
}

func TestInTx_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fieldID := seedField(t, s, "field-1", "content")

	err := s.InTx(ctx, func(q *Queries) error {
		return q.UpsertBlockType(ctx, createTestBlockType(fieldID, "bt-1", "text"))
	})
	if err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}

	bt, err := s.BlockTypeByUID(ctx, "bt-1")
	if err != nil {
		t.Fatalf("BlockTypeByUID() failed: %v", err)
	}
	if bt.Handle != "text" {
		t.Errorf("handle = %q, want %q", bt.Handle, "text")
	}
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fieldID := seedField(t, s, "field-1", "content")

	func() {
		defer func() { _ = recover() }()
		_ = s.InTx(ctx, func(q *Queries) error {
			if err := q.UpsertBlockType(ctx, createTestBlockType(fieldID, "bt-1", "text")); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	if _, ok, _ := s.idByUID(ctx, "block_types", "bt-1"); ok {
		t.Error("block type persisted despite panic")
	}
}
