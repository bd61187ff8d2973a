package blocktypes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/blockcfg/internal/engine"
	"github.com/roach88/blockcfg/internal/icon"
	"github.com/roach88/blockcfg/internal/ir"
	"github.com/roach88/blockcfg/internal/memo"
	"github.com/roach88/blockcfg/internal/projectconfig"
	"github.com/roach88/blockcfg/internal/store"
)

// FieldType is the field type whose block types GetAll returns.
const FieldType = "blocks"

// Service reads and mutates block types and groups.
type Service struct {
	store  *store.Store
	engine *engine.Engine
	config *projectconfig.Store
	icons  *icon.Cache

	// elements is invalidated after blocks are created.
	elements engine.Invalidator

	alwaysShowDropdown bool
	newUID             func() string
}

// Option configures a Service.
type Option func(*Service)

// WithIcons sets the icon cache used by IconPath and IconURL.
func WithIcons(c *icon.Cache) Option {
	return func(s *Service) {
		s.icons = c
	}
}

// WithElementCache sets the element query cache to invalidate after a block
// is created.
func WithElementCache(inv engine.Invalidator) Option {
	return func(s *Service) {
		s.elements = inv
	}
}

// WithAlwaysShowDropdown sets the global default groups inherit.
func WithAlwaysShowDropdown(v bool) Option {
	return func(s *Service) {
		s.alwaysShowDropdown = v
	}
}

// WithUIDGenerator replaces the random uid generator.
func WithUIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newUID = fn
	}
}

// New creates a Service. e must be registered on pc.
func New(st *store.Store, e *engine.Engine, pc *projectconfig.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: e,
		config: pc,
		newUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cache returns the context's memo cache, or a cache for this call only.
func (s *Service) cache(ctx context.Context) *memo.Cache {
	if c, ok := memo.FromContext(ctx); ok {
		return c
	}
	return memo.New(s.store)
}

// GetByID returns the block type with id, or nil if there is none.
func (s *Service) GetByID(ctx context.Context, id int64) (*ir.BlockType, error) {
	return s.cache(ctx).BlockTypeByID(ctx, id)
}

// GetByHandle returns the block type with handle. Unlike GetByID, an
// unknown handle is an error satisfying engine.IsNotFound.
func (s *Service) GetByHandle(ctx context.Context, handle string) (*ir.BlockType, error) {
	bt, err := s.cache(ctx).BlockTypeByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if bt == nil {
		return nil, engine.NewNotFoundError("block type", "handle "+handle)
	}
	return bt, nil
}

// GetByFieldID returns a field's block types in sort order.
func (s *Service) GetByFieldID(ctx context.Context, fieldID int64) ([]*ir.BlockType, error) {
	return s.cache(ctx).BlockTypesByField(ctx, fieldID)
}

// GetGroupByID returns the group with id, or nil if there is none.
func (s *Service) GetGroupByID(ctx context.Context, id int64) (*ir.BlockTypeGroup, error) {
	return s.cache(ctx).GroupByID(ctx, id)
}

// GetGroupsByFieldID returns a field's groups in sort order.
func (s *Service) GetGroupsByFieldID(ctx context.Context, fieldID int64) ([]*ir.BlockTypeGroup, error) {
	return s.cache(ctx).GroupsByField(ctx, fieldID)
}

// GetAll returns the block types of every block field.
func (s *Service) GetAll(ctx context.Context) ([]*ir.BlockType, error) {
	return s.store.AllBlockTypes(ctx, FieldType)
}

// GetAllGroups returns the groups of every block field.
func (s *Service) GetAllGroups(ctx context.Context) ([]*ir.BlockTypeGroup, error) {
	return s.store.AllGroups(ctx, FieldType)
}

// Group returns bt's group, or nil when bt is ungrouped or its group is
// gone. Both outcomes are memoized for the operation.
func (s *Service) Group(ctx context.Context, bt *ir.BlockType) (*ir.BlockTypeGroup, error) {
	if bt.GroupID == nil {
		return nil, nil
	}
	return s.cache(ctx).GroupByID(ctx, *bt.GroupID)
}

// ShowDropdown resolves whether g always shows its dropdown.
func (s *Service) ShowDropdown(g *ir.BlockTypeGroup) bool {
	return g.ShowDropdown(s.alwaysShowDropdown)
}

// Validate returns bt's validation problems.
func (s *Service) Validate(bt *ir.BlockType) []ir.ValidationError {
	return ir.ValidateBlockType(bt)
}

// Save publishes bt's config. A new block type gets a random uid. The
// field's order list is updated first so the row's sort order follows it.
//
// Save returns false without error when a before-save listener vetoed the
// save, and false with a validation error when validate is set and bt is
// invalid.
func (s *Service) Save(ctx context.Context, bt *ir.BlockType, validate bool) (bool, error) {
	if validate {
		if errs := s.Validate(bt); len(errs) > 0 {
			return false, &engine.Error{
				Code:       engine.ErrCodeValidation,
				Message:    fmt.Sprintf("%d validation error(s)", len(errs)),
				UID:        bt.UID,
				Validation: errs,
			}
		}
	}

	if bt.IsNew() || bt.UID == "" {
		if bt.IsNew() {
			bt.UID = s.newUID()
		} else if err := s.fillUID(ctx, bt); err != nil {
			return false, err
		}
	}

	cfg, err := s.blockTypeConfig(ctx, bt)
	if err != nil {
		return false, err
	}

	restore, err := s.placeInOrder(ctx, cfg.Field, ir.BlockTypeToken(bt.UID), bt.SortOrder)
	if err != nil {
		return false, err
	}
	if err := s.config.Set(ctx, s.engine.BlockTypePath(bt.UID), cfg.Map()); err != nil {
		restore()
		if errors.Is(err, engine.ErrVetoed) {
			slog.Info("block type save vetoed", "uid", bt.UID, "handle", bt.Handle)
			return false, nil
		}
		return false, err
	}
	if err := s.syncSortOrders(ctx, bt.FieldID, cfg.Field); err != nil {
		return false, err
	}

	saved, err := s.store.BlockTypeByUID(ctx, bt.UID)
	if err != nil {
		return false, fmt.Errorf("reload block type %s: %w", bt.UID, err)
	}
	*bt = *saved
	return true, nil
}

// SaveGroup publishes g's config. A new group gets a random uid.
func (s *Service) SaveGroup(ctx context.Context, g *ir.BlockTypeGroup) (bool, error) {
	if g.IsNew() {
		g.UID = s.newUID()
	} else if g.UID == "" {
		stored, err := s.store.GroupByID(ctx, g.ID)
		if err != nil {
			return false, fmt.Errorf("group %d: %w", g.ID, err)
		}
		g.UID = stored.UID
	}

	field, err := s.store.FieldByID(ctx, g.FieldID)
	if err != nil {
		return false, fmt.Errorf("field %d: %w", g.FieldID, err)
	}
	cfg := &ir.GroupConfig{
		Field:              field.UID,
		Name:               g.Name,
		AlwaysShowDropdown: g.AlwaysShowDropdown,
	}

	restore, err := s.placeInOrder(ctx, field.UID, ir.GroupToken(g.UID), g.SortOrder)
	if err != nil {
		return false, err
	}
	if err := s.config.Set(ctx, s.engine.GroupPath(g.UID), cfg.Map()); err != nil {
		restore()
		return false, err
	}
	if err := s.syncSortOrders(ctx, g.FieldID, field.UID); err != nil {
		return false, err
	}

	saved, err := s.store.GroupByUID(ctx, g.UID)
	if err != nil {
		return false, fmt.Errorf("reload group %s: %w", g.UID, err)
	}
	*g = *saved
	return true, nil
}

// Delete removes bt's token from its field's order list and removes its
// config, which deletes the row, its layout and its blocks.
func (s *Service) Delete(ctx context.Context, bt *ir.BlockType) (bool, error) {
	if bt.UID == "" {
		if err := s.fillUID(ctx, bt); err != nil {
			return false, err
		}
	}
	field, err := s.store.FieldByID(ctx, bt.FieldID)
	if err != nil {
		return false, fmt.Errorf("field %d: %w", bt.FieldID, err)
	}
	if err := s.removeFromOrder(ctx, field.UID, ir.BlockTypeToken(bt.UID)); err != nil {
		return false, err
	}
	if err := s.config.Remove(ctx, s.engine.BlockTypePath(bt.UID)); err != nil {
		return false, err
	}
	if err := s.syncSortOrders(ctx, bt.FieldID, field.UID); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteGroup removes g's token from its field's order list and removes its
// config. Its block types become ungrouped.
func (s *Service) DeleteGroup(ctx context.Context, g *ir.BlockTypeGroup) (bool, error) {
	field, err := s.store.FieldByID(ctx, g.FieldID)
	if err != nil {
		return false, fmt.Errorf("field %d: %w", g.FieldID, err)
	}
	if err := s.removeFromOrder(ctx, field.UID, ir.GroupToken(g.UID)); err != nil {
		return false, err
	}
	if err := s.config.Remove(ctx, s.engine.GroupPath(g.UID)); err != nil {
		return false, err
	}
	if err := s.syncSortOrders(ctx, g.FieldID, field.UID); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteGroupsByFieldID deletes every group of a field.
func (s *Service) DeleteGroupsByFieldID(ctx context.Context, fieldID int64) (bool, error) {
	groups, err := s.GetGroupsByFieldID(ctx, fieldID)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if _, err := s.DeleteGroup(ctx, g); err != nil {
			return false, err
		}
	}
	return true, nil
}

// IconPath returns the generated icon path for bt, or "".
func (s *Service) IconPath(bt *ir.BlockType, t *icon.Transform) string {
	if s.icons == nil {
		return ""
	}
	return s.icons.Path(bt.Icon.Filename, t)
}

// IconURL returns the generated icon URL for bt, or "".
func (s *Service) IconURL(bt *ir.BlockType, t *icon.Transform) string {
	if s.icons == nil {
		return ""
	}
	return s.icons.URL(bt.Icon.Filename, t)
}

func (s *Service) fillUID(ctx context.Context, bt *ir.BlockType) error {
	stored, err := s.store.BlockTypeByID(ctx, bt.ID)
	if err != nil {
		return fmt.Errorf("block type %d: %w", bt.ID, err)
	}
	bt.UID = stored.UID
	return nil
}
