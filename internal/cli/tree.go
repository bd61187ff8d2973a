package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/resolver"
)

// TreeOptions holds flags for the tree command.
type TreeOptions struct {
	*RootOptions
	Owner int64
	Site  string
}

// TreeNode is one block with its children.
type TreeNode struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Level     int        `json:"level"`
	SortOrder int        `json:"sort_order"`
	Children  []TreeNode `json:"children,omitempty"`
}

// TreeResult is the block tree of one owner's field.
type TreeResult struct {
	Field  string     `json:"field"`
	Owner  int64      `json:"owner"`
	Site   string     `json:"site,omitempty"`
	Blocks []TreeNode `json:"blocks"`
}

func (r TreeResult) printText(w io.Writer) {
	fmt.Fprintf(w, "Field %s, owner %d\n", r.Field, r.Owner)
	if len(r.Blocks) == 0 {
		fmt.Fprintln(w, "  (no blocks)")
	}
	var walk func(nodes []TreeNode, depth int)
	walk = func(nodes []TreeNode, depth int) {
		for _, n := range nodes {
			fmt.Fprintf(w, "%s- %s #%d\n", strings.Repeat("  ", depth+1), n.Type, n.ID)
			walk(n.Children, depth+1)
		}
	}
	walk(r.Blocks, 0)
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tree <field-handle>",
		Short: "Print the nested blocks of one owner's field",
		Long: `Print the nested blocks of one owner's field.

The whole tree is fetched with a single query and children are answered from
that result set.

Example:
  blockcfg tree content --owner 42 --site en`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Owner, "owner", 0, "owner element id (required)")
	cmd.Flags().StringVar(&opts.Site, "site", "", "site handle (default: all sites)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runTree(opts *TreeOptions, fieldHandle string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := a.context(cmd.Context())
	field, err := a.store.FieldByHandle(ctx, fieldHandle)
	if errors.Is(err, sql.ErrNoRows) {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeNotFound, Message: fmt.Sprintf("no field with handle %q", fieldHandle)}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read field", err)
	}

	filters := map[string]any{"fieldId": field.ID, "ownerId": opts.Owner}
	if opts.Site != "" {
		siteID, ok, err := a.store.SiteIDByHandle(ctx, opts.Site)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read site", err)
		}
		if !ok {
			return &ExitError{Code: ExitFailure, ErrCode: ErrCodeNotFound, Message: fmt.Sprintf("no site with handle %q", opts.Site)}
		}
		filters["siteId"] = siteID
	}

	all := 0
	blocks, err := a.resolver.Resolve(ctx, nil, resolver.Args{Level: &all, Filters: filters})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve blocks", err)
	}

	result := TreeResult{Field: field.Handle, Owner: opts.Owner, Site: opts.Site, Blocks: []TreeNode{}}
	for _, b := range blocks {
		if b.ParentID != nil {
			continue
		}
		node, err := a.treeNode(ctx, b)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build tree", err)
		}
		result.Blocks = append(result.Blocks, node)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result)
}

func (a *app) treeNode(ctx context.Context, b *ir.Block) (TreeNode, error) {
	node := TreeNode{ID: b.ID, Level: b.Level, SortOrder: b.SortOrder, Type: fmt.Sprintf("#%d", b.TypeID)}
	bt, err := a.service.GetByID(ctx, b.TypeID)
	if err != nil {
		return node, err
	}
	if bt != nil {
		node.Type = bt.Handle
	}

	children, err := a.resolver.Children(ctx, b)
	if err != nil {
		return node, err
	}
	for _, c := range children {
		child, err := a.treeNode(ctx, c)
		if err != nil {
			return node, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
