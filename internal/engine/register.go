package engine

import (
	"context"

	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/projectconfig"
)

// Register subscribes the engine to the block type, group and order paths
// of pc and makes pc the engine's ConfigSource. Orders are registered first
// so snapshot applies rewrite sort orders before rows are upserted.
func (e *Engine) Register(pc *projectconfig.Store) {
	e.config = pc

	pc.On(e.namespace+".orders.{uid}", projectconfig.Handlers{
		Changed: func(ctx context.Context, ev projectconfig.Event) error {
			tokens, err := ir.DecodeOrderList(ev.NewValue)
			if err != nil {
				return err
			}
			return e.ApplyOrderChange(ctx, ev.Tokens[0], tokens, pc.IsApplyingExternalChanges())
		},
	})

	pc.On(e.namespace+".blockTypeGroups.{uid}", projectconfig.Handlers{
		Changed: func(ctx context.Context, ev projectconfig.Event) error {
			cfg, err := ir.DecodeGroupConfig(ev.NewValue)
			if err != nil {
				return err
			}
			return e.ApplyGroupChange(ctx, ev.Tokens[0], cfg)
		},
		Removed: func(ctx context.Context, ev projectconfig.Event) error {
			return e.ApplyGroupDeletion(ctx, ev.Tokens[0])
		},
	})

	pc.On(e.namespace+".blockTypes.{uid}", projectconfig.Handlers{
		Changed: func(ctx context.Context, ev projectconfig.Event) error {
			cfg, err := ir.DecodeBlockTypeConfig(ev.NewValue)
			if err != nil {
				return err
			}
			return e.ApplyBlockTypeChange(ctx, ev.Tokens[0], cfg)
		},
		Removed: func(ctx context.Context, ev projectconfig.Event) error {
			return e.ApplyBlockTypeDeletion(ctx, ev.Tokens[0])
		},
	})
}
