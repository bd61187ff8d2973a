package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/blockcfg/internal/blocktypes"
	"github.com/roach88/blockcfg/internal/config"
	"github.com/roach88/blockcfg/internal/elementcache"
	"github.com/roach88/blockcfg/internal/engine"
	"github.com/roach88/blockcfg/internal/icon"
	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/projectconfig"
	"github.com/roach88/blockcfg/internal/resolver"
	"github.com/roach88/blockcfg/internal/store"
)

// app holds the components a command works with, wired from the settings.
type app struct {
	settings *config.Config
	store    *store.Store
	config   *projectconfig.Store
	engine   *engine.Engine
	service  *blocktypes.Service
	resolver *resolver.Resolver
	elements *elementcache.Cache
	icons    *icon.Cache
}

// loadSettings reads blockcfg.yaml, BLOCKCFG_* variables and the settings
// flags of cmd's root.
func loadSettings(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:  opts.ConfigFile,
		Flags: cmd.Root().PersistentFlags(),
	})
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeSettings, Message: "failed to load settings", Err: err}
	}
	return cfg, nil
}

// openApp loads the settings and opens the database. The caller must Close
// the returned app.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := loadSettings(cmd, opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeStore, Message: "failed to open database", Err: err}
	}

	elements := elementcache.New(cfg.ElementCacheTTL)
	icons := icon.New(icon.Options{
		SourceDir: cfg.Icons.SourceDir,
		OutputDir: cfg.Icons.OutputDir,
		BaseURL:   cfg.Icons.BaseURL,
	})
	pc := projectconfig.New()
	e := engine.New(st,
		engine.WithNamespace(cfg.Namespace),
		engine.WithElementCache(elements),
	)
	e.Register(pc)

	return &app{
		settings: cfg,
		store:    st,
		config:   pc,
		engine:   e,
		service: blocktypes.New(st, e, pc,
			blocktypes.WithIcons(icons),
			blocktypes.WithElementCache(elements),
			blocktypes.WithAlwaysShowDropdown(cfg.AlwaysShowDropdown),
		),
		resolver: resolver.New(st, resolver.WithElementCache(elements)),
		elements: elements,
		icons:    icons,
	}, nil
}

// Close stops the element cache and closes the database.
func (a *app) Close() {
	a.elements.Close()
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// context returns a context carrying a fresh memo cache for one operation.
func (a *app) context(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return memo.NewContext(parent, memo.New(a.store))
}

// applySnapshot applies a loaded project config with a fresh memo cache.
func (a *app) applySnapshot(ctx context.Context, snapshot map[string]any) error {
	return a.service.ApplyProjectConfig(a.context(ctx), snapshot)
}
