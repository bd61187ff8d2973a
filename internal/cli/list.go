package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/ir"
)

// ListedBlockType is one block type in list output.
type ListedBlockType struct {
	UID       string `json:"uid"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	TopLevel  bool   `json:"top_level"`
	Group     string `json:"group,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`
}

// ListedGroup is one group in list output.
type ListedGroup struct {
	UID          string `json:"uid"`
	Name         string `json:"name"`
	SortOrder    int    `json:"sort_order"`
	ShowDropdown bool   `json:"show_dropdown"`
}

// ListResult is the block types and groups of one field.
type ListResult struct {
	Field      string            `json:"field"`
	Groups     []ListedGroup     `json:"groups"`
	BlockTypes []ListedBlockType `json:"block_types"`
}

func (r ListResult) printText(w io.Writer) {
	fmt.Fprintf(w, "Field %s\n", r.Field)
	if len(r.Groups) > 0 {
		fmt.Fprintln(w, "Groups:")
		for _, g := range r.Groups {
			fmt.Fprintf(w, "  %2d. %s (%s)\n", g.SortOrder, g.Name, g.UID)
		}
	}
	fmt.Fprintln(w, "Block types:")
	if len(r.BlockTypes) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, bt := range r.BlockTypes {
		line := fmt.Sprintf("  %2d. %s [%s]", bt.SortOrder, bt.Name, bt.Handle)
		if bt.Group != "" {
			line += " in " + bt.Group
		}
		if !bt.TopLevel {
			line += " (child only)"
		}
		fmt.Fprintln(w, line)
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <field-handle>",
		Short: "List a field's block types and groups in sort order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args[0], cmd)
		},
	}
}

func runList(opts *RootOptions, fieldHandle string, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
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

	groups, err := a.service.GetGroupsByFieldID(ctx, field.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read groups", err)
	}
	types, err := a.service.GetByFieldID(ctx, field.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read block types", err)
	}

	result := ListResult{
		Field:      field.Handle,
		Groups:     make([]ListedGroup, 0, len(groups)),
		BlockTypes: make([]ListedBlockType, 0, len(types)),
	}
	for _, g := range groups {
		result.Groups = append(result.Groups, ListedGroup{
			UID:          g.UID,
			Name:         g.Name,
			SortOrder:    g.SortOrder,
			ShowDropdown: a.service.ShowDropdown(g),
		})
	}
	for _, bt := range types {
		entry, err := a.listedBlockType(ctx, bt)
		if err != nil {
			return err
		}
		result.BlockTypes = append(result.BlockTypes, entry)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result)
}

func (a *app) listedBlockType(ctx context.Context, bt *ir.BlockType) (ListedBlockType, error) {
	entry := ListedBlockType{
		UID:       bt.UID,
		Handle:    bt.Handle,
		Name:      bt.Name,
		SortOrder: bt.SortOrder,
		TopLevel:  bt.TopLevel,
		IconURL:   a.service.IconURL(bt, nil),
	}
	g, err := a.service.Group(ctx, bt)
	if err != nil {
		return entry, WrapExitError(ExitCommandError, "failed to read group", err)
	}
	if g != nil {
		entry.Group = g.Name
	}
	return entry, nil
}
