// Package order turns a field's order token list into numeric sort orders.
package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/blockcfg/internal/ir"
)

// Writer persists sort orders. found reports whether a row with the uid
// exists. *store.Queries satisfies it.
type Writer interface {
	SetBlockTypeSortOrder(ctx context.Context, uid string, sortOrder int) (found bool, err error)
	SetGroupSortOrder(ctx context.Context, uid string, sortOrder int) (found bool, err error)
}

// Result summarizes one reconciliation.
type Result struct {
	// Applied counts tokens whose row received a sort order.
	Applied int
	// Skipped lists tokens that were malformed or referenced no row.
	Skipped []string
}

// Reconcile writes sortOrder i+1 onto the row referenced by tokens[i], for
// every token. It always rewrites the whole list. Tokens that cannot be
// parsed or resolved are skipped; storage errors abort.
func Reconcile(ctx context.Context, w Writer, tokens []string) (Result, error) {
	var res Result
	for i, raw := range tokens {
		tok, err := ir.ParseOrderToken(raw)
		if err != nil {
			slog.Debug("skipping order token", "token", raw, "error", err)
			res.Skipped = append(res.Skipped, raw)
			continue
		}

		var found bool
		switch tok.Kind {
		case ir.TokenBlockType:
			found, err = w.SetBlockTypeSortOrder(ctx, tok.UID, i+1)
		case ir.TokenBlockTypeGroup:
			found, err = w.SetGroupSortOrder(ctx, tok.UID, i+1)
		}
		if err != nil {
			return res, fmt.Errorf("reconcile %s: %w", raw, err)
		}
		if !found {
			slog.Debug("skipping order token for unknown row", "token", raw)
			res.Skipped = append(res.Skipped, raw)
			continue
		}
		res.Applied++
	}
	return res, nil
}
