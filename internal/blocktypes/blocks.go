package blocktypes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/blockcfg/internal/engine"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/store"
)

// Block creation rule violations.
var (
	ErrNotTopLevel       = errors.New("block type cannot be used at the top level")
	ErrChildNotAllowed   = errors.New("block type is not an allowed child")
	ErrTooManyChildren   = errors.New("parent block has reached its maximum child blocks")
	ErrFieldMismatch     = errors.New("block type belongs to another field")
	ErrParentInOtherTree = errors.New("parent block belongs to another owner, field or site")
)

// NewBlock describes a block to create.
type NewBlock struct {
	OwnerID  int64
	FieldID  int64
	SiteID   int64
	TypeID   int64
	ParentID *int64
	// SortOrder defaults to after the existing siblings.
	SortOrder int
}

// CreateBlock creates a block after checking its type's placement rules:
// root blocks need a top-level type, and child blocks need a type the
// parent's type allows, within the parent type's maxChildBlocks.
func (s *Service) CreateBlock(ctx context.Context, nb NewBlock) (*ir.Block, error) {
	bt, err := s.GetByID(ctx, nb.TypeID)
	if err != nil {
		return nil, err
	}
	if bt == nil {
		return nil, engine.NewNotFoundError("block type", fmt.Sprintf("id %d", nb.TypeID))
	}
	if bt.FieldID != nb.FieldID {
		return nil, fmt.Errorf("%s: %w", bt.Handle, ErrFieldMismatch)
	}

	b := &ir.Block{
		OwnerID:   nb.OwnerID,
		FieldID:   nb.FieldID,
		SiteID:    nb.SiteID,
		TypeID:    nb.TypeID,
		ParentID:  nb.ParentID,
		SortOrder: nb.SortOrder,
	}

	err = s.store.InTx(ctx, func(q *store.Queries) error {
		if nb.ParentID == nil {
			if !bt.TopLevel {
				return fmt.Errorf("%s: %w", bt.Handle, ErrNotTopLevel)
			}
			b.Level = 1
		} else {
			siblings, err := s.checkChild(ctx, q, bt, b)
			if err != nil {
				return err
			}
			if b.SortOrder == 0 {
				b.SortOrder = siblings + 1
			}
		}
		return q.CreateBlock(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if s.elements != nil {
		s.elements.InvalidateKind(ir.ElementKindBlock)
	}
	return b, nil
}

// checkChild validates b as a child of its parent, sets its level and
// returns the parent's current child count.
func (s *Service) checkChild(ctx context.Context, q *store.Queries, bt *ir.BlockType, b *ir.Block) (int, error) {
	parent, err := q.BlockByID(ctx, *b.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, engine.NewNotFoundError("block", fmt.Sprintf("id %d", *b.ParentID))
	}
	if err != nil {
		return 0, err
	}
	if parent.OwnerID != b.OwnerID || parent.FieldID != b.FieldID || parent.SiteID != b.SiteID {
		return 0, ErrParentInOtherTree
	}

	// The transaction holds the store's only connection; read through q.
	parentType, err := q.BlockTypeByID(ctx, parent.TypeID)
	if err != nil {
		return 0, fmt.Errorf("type of block %d: %w", parent.ID, err)
	}
	if !parentType.AllowsChild(bt.Handle) {
		return 0, fmt.Errorf("%s under %s: %w", bt.Handle, parentType.Handle, ErrChildNotAllowed)
	}

	n, err := q.CountChildren(ctx, parent.ID)
	if err != nil {
		return 0, err
	}
	if parentType.MaxChildBlocks > 0 && n >= parentType.MaxChildBlocks {
		return 0, fmt.Errorf("%s allows %d: %w", parentType.Handle, parentType.MaxChildBlocks, ErrTooManyChildren)
	}
	b.Level = parent.Level + 1
	return n, nil
}
