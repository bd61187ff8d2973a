package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/projectconfig"
)

// ApplyResult summarizes the database after an apply.
type ApplyResult struct {
	Config     string `json:"config"`
	BlockTypes int    `json:"block_types"`
	Groups     int    `json:"groups"`
}

func (r ApplyResult) printText(w io.Writer) {
	fmt.Fprintf(w, "✓ Applied %s: %d block type(s), %d group(s)\n", r.Config, r.BlockTypes, r.Groups)
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <config>",
		Short: "Apply a project config file to the database",
		Long: `Apply a project config file to the database.

The file is validated against the config schema and applied as one external
change: order lists first, then groups, then block types, then removals.
Anything missing from the file is deleted.

Exit codes:
  0 - Config applied
  1 - Config rejected (validation or a missing field or group)
  2 - Command error (unreadable file, database error, etc.)

Examples:
  blockcfg apply project.yaml
  blockcfg apply project.yaml --db ./site.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}
}

func runApply(opts *RootOptions, path string, cmd *cobra.Command) error {
	snapshot, err := projectconfig.Load(path)
	if err != nil {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeConfigInvalid, Message: "invalid project config", Err: err}
	}

	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := a.context(cmd.Context())
	slog.Info("applying project config", "path", path, "namespace", a.engine.Namespace())
	if err := a.applySnapshot(ctx, snapshot); err != nil {
		return wrapEngineError("failed to apply project config", err)
	}

	types, err := a.service.GetAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list block types", err)
	}
	groups, err := a.service.GetAllGroups(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list groups", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(ApplyResult{Config: path, BlockTypes: len(types), Groups: len(groups)})
}
