package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/projectconfig"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <config>",
		Short: "Apply a project config file and re-apply it on every change",
		Long: `Apply a project config file, then keep watching it and re-apply it
whenever it changes. A file that fails to load or apply is logged and the
previous state is kept.

Example:
  blockcfg watch project.yaml --debounce 250ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", projectconfig.DefaultDebounce, "time to wait for writes to settle")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	snapshot, err := projectconfig.Load(path)
	if err != nil {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeConfigInvalid, Message: "invalid project config", Err: err}
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.applySnapshot(ctx, snapshot); err != nil {
		return wrapEngineError("failed to apply project config", err)
	}
	slog.Info("watching project config", "path", path, "debounce", opts.Debounce)
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s. Press Ctrl-C to stop.\n", path)

	err = projectconfig.Watch(ctx, path, opts.Debounce, a.applySnapshot)
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	slog.Info("stopped watching", "path", path)
	return nil
}
