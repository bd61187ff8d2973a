package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigFile is an explicit blockcfg.yaml. Empty means the working
	// directory's, if any.
	ConfigFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the blockcfg CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with os.Args, reports a failure in the selected
// format and returns the process exit code.
func Execute() int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	// A failed test run has already printed its report.
	if errCode(err) == ErrCodeTestFailed {
		return GetExitCode(err)
	}
	out := &OutputFormatter{Format: "text", Writer: os.Stderr}
	if opts.Format == "json" {
		out = &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	}
	_ = out.Error(errCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blockcfg",
		Short: "Declarative block type configuration",
		Long: `blockcfg keeps block types, block type groups and their order in a
SQLite database in sync with a declarative project config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(opts.Verbose)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "settings file (default ./blockcfg.yaml)")

	// Settings flags are bound to config keys by name; see config.Load.
	flags.String("db", "", "path to SQLite database")
	flags.String("namespace", "", "config namespace of block type paths")

	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewIconCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setupLogging sends slog output to stderr, at debug level when verbose.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
