package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/icon"
)

// IconOptions holds flags for the icon command.
type IconOptions struct {
	*RootOptions
	Width  int
	Height int
	List   bool
}

// IconResult is a generated icon.
type IconResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url"`
}

func (r IconResult) printText(w io.Writer) {
	fmt.Fprintf(w, "%s\n  path: %s\n  url:  %s\n", r.Filename, r.Path, r.URL)
}

// IconList is the icon files available to block types.
type IconList struct {
	Filenames []string `json:"filenames"`
}

func (l IconList) printText(w io.Writer) {
	if len(l.Filenames) == 0 {
		fmt.Fprintln(w, "No icons found.")
	}
	for _, name := range l.Filenames {
		fmt.Fprintln(w, name)
	}
}

// NewIconCommand creates the icon command.
func NewIconCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IconOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "icon [filename]",
		Short: "Generate a block type icon or list available icons",
		Long: `Generate the public copy of a block type icon from the icon source
directory, optionally scaled and cropped, and print its path and URL. With
--list, print the icon files available instead.

Examples:
  blockcfg icon quote.svg
  blockcfg icon hero.png --width 64 --height 64
  blockcfg icon --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := ""
			if len(args) == 1 {
				filename = args[0]
			}
			return runIcon(opts, filename, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", 0, "scale-and-crop width")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "scale-and-crop height")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list available icon files")

	return cmd
}

func runIcon(opts *IconOptions, filename string, cmd *cobra.Command) error {
	cfg, err := loadSettings(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	cache := icon.New(icon.Options{
		SourceDir: cfg.Icons.SourceDir,
		OutputDir: cfg.Icons.OutputDir,
		BaseURL:   cfg.Icons.BaseURL,
	})
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.List {
		names, err := cache.Filenames()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list icons", err)
		}
		return out.Success(IconList{Filenames: names})
	}
	if filename == "" {
		return NewExitError(ExitCommandError, "an icon filename or --list is required")
	}

	var t *icon.Transform
	if opts.Width > 0 || opts.Height > 0 {
		if opts.Width <= 0 || opts.Height <= 0 {
			return NewExitError(ExitCommandError, "--width and --height must both be positive")
		}
		t = &icon.Transform{Width: opts.Width, Height: opts.Height}
	}

	ic, ok := cache.Resolve(filename, t)
	if !ok {
		return &ExitError{
			Code:    ExitFailure,
			ErrCode: ErrCodeNotFound,
			Message: fmt.Sprintf("icon %q is missing from %s or could not be processed", filename, cfg.Icons.SourceDir),
		}
	}
	return out.Success(IconResult{Filename: filename, Path: ic.Path, URL: ic.URL})
}
