package projectconfig

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/blockcfg/internal/ir"
)

// Event describes one changed path.
type Event struct {
	// Path is the concrete dotted path that changed.
	Path string
	// Tokens holds the values captured by the pattern's "{name}" segments.
	Tokens []string
	// OldValue is the previous value, nil if the path is new.
	OldValue any
	// NewValue is the new value, nil if the path was removed.
	NewValue any
}

// Handler reacts to a config change.
type Handler func(ctx context.Context, ev Event) error

// Handlers is the pair registered for a pattern. Removed may be nil, in
// which case Changed receives removals with a nil NewValue.
type Handlers struct {
	Changed Handler
	Removed Handler
}

type route struct {
	pattern  string
	segs     []string
	handlers Handlers
}

type change struct {
	route *route
	event Event
}

// Store holds the config tree and dispatches changes to handlers.
//
// Handlers run on the caller's goroutine with no lock held, so they may read
// the store. Concurrent writers are serialized only around the tree itself;
// callers applying snapshots should do so from one goroutine.
type Store struct {
	mu   sync.RWMutex
	tree map[string]any

	routes []*route

	external bool
	pending  map[string]change
}

// New returns an empty store.
func New() *Store {
	return &Store{tree: make(map[string]any)}
}

// On registers handlers for a path pattern such as "neo.blockTypes.{uid}".
// Snapshot changes are dispatched in registration order; removals in
// reverse registration order.
func (s *Store) On(pattern string, h Handlers) {
	s.routes = append(s.routes, &route{pattern: pattern, segs: splitPath(pattern), handlers: h})
}

// Get returns the value at path, or nil. The result must not be modified.
func (s *Store) Get(path string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.tree, splitPath(path))
}

// Snapshot returns a deep copy of the whole tree.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.tree).(map[string]any)
}

// IsApplyingExternalChanges reports whether an ApplyExternal call is
// currently dispatching.
func (s *Store) IsApplyingExternalChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.external
}

// Set writes value at path and fires the handler of the pattern covering
// path. Writing a value equal to the current one is a no-op. If the handler
// fails the previous value is restored.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	norm, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	segs := splitPath(path)

	s.mu.Lock()
	old := deepCopy(lookup(s.tree, segs))
	if ir.CanonicalEqual(old, norm) {
		s.mu.Unlock()
		return nil
	}
	assign(s.tree, segs, norm)
	s.mu.Unlock()

	c, ok := s.localChange(segs, old)
	if !ok {
		return nil
	}
	if err := s.dispatch(ctx, c); err != nil {
		s.mu.Lock()
		assign(s.tree, segs, old)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Remove deletes the value at path.
func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

// localChange builds the event for a write at segs. A write below a
// pattern's path (for example one slot of an order list) is reported as a
// change of the whole matched value.
func (s *Store) localChange(segs []string, previous any) (change, bool) {
	for n := len(segs); n > 0; n-- {
		for _, r := range s.routes {
			tokens, ok := matchPath(r.segs, segs[:n])
			if !ok {
				continue
			}
			oldValue := previous
			if n < len(segs) {
				// The write was nested; rebuild the pattern-level old value.
				s.mu.RLock()
				cur := deepCopy(lookup(s.tree, segs[:n]))
				s.mu.RUnlock()
				if m, ok := cur.(map[string]any); ok {
					assign(m, segs[n:], previous)
				}
				oldValue = cur
			}
			s.mu.RLock()
			newValue := lookup(s.tree, segs[:n])
			s.mu.RUnlock()
			return change{route: r, event: Event{
				Path:     strings.Join(segs[:n], "."),
				Tokens:   tokens,
				OldValue: oldValue,
				NewValue: newValue,
			}}, true
		}
	}
	return change{}, false
}

// ApplyExternal replaces the tree with snapshot and fires a handler for every
// matched path whose value changed. Changes run first, in registration
// order; removals follow in reverse registration order. The first handler
// error stops the apply and restores the previous tree.
func (s *Store) ApplyExternal(ctx context.Context, snapshot map[string]any) error {
	norm, err := normalize(snapshot)
	if err != nil {
		return fmt.Errorf("apply external: %w", err)
	}
	newTree, _ := norm.(map[string]any)
	if newTree == nil {
		newTree = make(map[string]any)
	}

	s.mu.Lock()
	oldTree := s.tree
	changes, removals := s.diff(oldTree, newTree)
	s.tree = newTree
	s.external = true
	s.pending = make(map[string]change, len(changes)+len(removals))
	for _, c := range slices.Concat(changes, removals) {
		s.pending[c.event.Path] = c
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.external = false
		s.pending = nil
		s.mu.Unlock()
	}()

	slog.Debug("applying external config", "changes", len(changes), "removals", len(removals))

	for _, c := range slices.Concat(changes, removals) {
		if !s.takePending(c.event.Path) {
			continue
		}
		if err := s.dispatch(ctx, c); err != nil {
			s.mu.Lock()
			s.tree = oldTree
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

// ProcessPending immediately dispatches the pending external change of path,
// if there is one. Outside ApplyExternal it does nothing.
func (s *Store) ProcessPending(ctx context.Context, path string) error {
	s.mu.RLock()
	c, ok := s.pending[path]
	s.mu.RUnlock()
	if !ok || !s.takePending(path) {
		return nil
	}
	return s.dispatch(ctx, c)
}

func (s *Store) takePending(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[path]; !ok {
		return false
	}
	delete(s.pending, path)
	return true
}

// diff compares two trees per registered pattern.
func (s *Store) diff(oldTree, newTree map[string]any) (changes, removals []change) {
	for _, r := range s.routes {
		seen := make(map[string]bool)
		for _, m := range matches(newTree, r.segs) {
			seen[m.path] = true
			oldValue := lookup(oldTree, splitPath(m.path))
			newValue := lookup(newTree, splitPath(m.path))
			if ir.CanonicalEqual(oldValue, newValue) {
				continue
			}
			changes = append(changes, change{route: r, event: Event{
				Path: m.path, Tokens: m.tokens, OldValue: oldValue, NewValue: newValue,
			}})
		}
		var gone []change
		for _, m := range matches(oldTree, r.segs) {
			if seen[m.path] {
				continue
			}
			gone = append(gone, change{route: r, event: Event{
				Path: m.path, Tokens: m.tokens, OldValue: lookup(oldTree, splitPath(m.path)),
			}})
		}
		removals = append(gone, removals...)
	}
	return changes, removals
}

func (s *Store) dispatch(ctx context.Context, c change) error {
	h := c.route.handlers.Changed
	if c.event.NewValue == nil && c.route.handlers.Removed != nil {
		h = c.route.handlers.Removed
	}
	if h == nil {
		return nil
	}
	if err := h(ctx, c.event); err != nil {
		return fmt.Errorf("%s: %w", c.event.Path, err)
	}
	return nil
}

