package projectconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects dispatched events as "kind:path" strings.
type recorder struct {
	calls []string
}

func (r *recorder) handlers(kind string) Handlers {
	return Handlers{
		Changed: func(_ context.Context, ev Event) error {
			r.calls = append(r.calls, kind+":"+ev.Path)
			return nil
		},
		Removed: func(_ context.Context, ev Event) error {
			r.calls = append(r.calls, "remove-"+kind+":"+ev.Path)
			return nil
		},
	}
}

func TestStore_SetFiresHandler(t *testing.T) {
	s := New()
	var got Event
	s.On("neo.blockTypes.{uid}", Handlers{Changed: func(_ context.Context, ev Event) error {
		got = ev
		return nil
	}})

	err := s.Set(context.Background(), "neo.blockTypes.abc", map[string]any{"handle": "text", "minBlocks": 1})
	require.NoError(t, err)

	assert.Equal(t, "neo.blockTypes.abc", got.Path)
	assert.Equal(t, []string{"abc"}, got.Tokens)
	assert.Nil(t, got.OldValue)
	assert.Equal(t, map[string]any{"handle": "text", "minBlocks": float64(1)}, got.NewValue)
	assert.False(t, s.IsApplyingExternalChanges())
}

func TestStore_SetEqualValueIsNoop(t *testing.T) {
	s := New()
	calls := 0
	s.On("neo.orders.{field}", Handlers{Changed: func(context.Context, Event) error {
		calls++
		return nil
	}})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "neo.orders.f1", []string{"blockType:a"}))
	require.NoError(t, s.Set(ctx, "neo.orders.f1", []any{"blockType:a"}))
	assert.Equal(t, 1, calls)
}

func TestStore_NestedSetReportsPatternValue(t *testing.T) {
	s := New()
	var got Event
	s.On("neo.blockTypes.{uid}", Handlers{Changed: func(_ context.Context, ev Event) error {
		got = ev
		return nil
	}})
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "neo.blockTypes.abc", map[string]any{"handle": "text", "name": "Text"}))

	require.NoError(t, s.Set(ctx, "neo.blockTypes.abc.name", "Body"))

	assert.Equal(t, "neo.blockTypes.abc", got.Path)
	assert.Equal(t, map[string]any{"handle": "text", "name": "Text"}, got.OldValue)
	assert.Equal(t, map[string]any{"handle": "text", "name": "Body"}, got.NewValue)
}

func TestStore_SetRestoresOnHandlerError(t *testing.T) {
	s := New()
	s.On("neo.blockTypes.{uid}", Handlers{Changed: func(context.Context, Event) error {
		return errors.New("rejected")
	}})

	err := s.Set(context.Background(), "neo.blockTypes.abc", map[string]any{"handle": "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neo.blockTypes.abc")
	assert.Nil(t, s.Get("neo.blockTypes.abc"))
}

func TestStore_ApplyExternalOrdering(t *testing.T) {
	s := New()
	r := &recorder{}
	s.On("neo.orders.{field}", r.handlers("order"))
	s.On("neo.blockTypeGroups.{uid}", r.handlers("group"))
	s.On("neo.blockTypes.{uid}", r.handlers("type"))
	ctx := context.Background()

	first := map[string]any{"neo": map[string]any{
		"blockTypes":      map[string]any{"t1": map[string]any{"handle": "a"}, "t2": map[string]any{"handle": "b"}},
		"blockTypeGroups": map[string]any{"g1": map[string]any{"name": "G"}},
		"orders":          map[string]any{"f1": []any{"blockTypeGroup:g1", "blockType:t1", "blockType:t2"}},
	}}
	require.NoError(t, s.ApplyExternal(ctx, first))
	assert.Equal(t, []string{
		"order:neo.orders.f1",
		"group:neo.blockTypeGroups.g1",
		"type:neo.blockTypes.t1",
		"type:neo.blockTypes.t2",
	}, r.calls)

	r.calls = nil
	second := map[string]any{"neo": map[string]any{
		"blockTypes": map[string]any{"t1": map[string]any{"handle": "a"}},
		"orders":     map[string]any{"f1": []any{"blockType:t1"}},
	}}
	require.NoError(t, s.ApplyExternal(ctx, second))
	assert.Equal(t, []string{
		"order:neo.orders.f1",
		"remove-type:neo.blockTypes.t2",
		"remove-group:neo.blockTypeGroups.g1",
	}, r.calls)

	r.calls = nil
	require.NoError(t, s.ApplyExternal(ctx, second))
	assert.Empty(t, r.calls, "identical snapshot must not fire handlers")
}

func TestStore_ProcessPending(t *testing.T) {
	s := New()
	var calls []string
	// Block types registered first so they would run before orders.
	s.On("neo.blockTypes.{uid}", Handlers{Changed: func(ctx context.Context, ev Event) error {
		require.True(t, s.IsApplyingExternalChanges())
		require.NoError(t, s.ProcessPending(ctx, "neo.orders.f1"))
		calls = append(calls, "type")
		return nil
	}})
	s.On("neo.orders.{field}", Handlers{Changed: func(context.Context, Event) error {
		calls = append(calls, "order")
		return nil
	}})

	err := s.ApplyExternal(context.Background(), map[string]any{"neo": map[string]any{
		"blockTypes": map[string]any{"t1": map[string]any{"handle": "a"}},
		"orders":     map[string]any{"f1": []any{"blockType:t1"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "type"}, calls, "pending order processed once, ahead of the block type")

	// Outside an apply there is nothing pending.
	require.NoError(t, s.ProcessPending(context.Background(), "neo.orders.f1"))
}

func TestStore_ApplyExternalRestoresOnError(t *testing.T) {
	s := New()
	s.On("neo.blockTypes.{uid}", Handlers{Changed: func(context.Context, Event) error {
		return errors.New("missing field")
	}})
	ctx := context.Background()

	err := s.ApplyExternal(ctx, map[string]any{"neo": map[string]any{
		"blockTypes": map[string]any{"t1": map[string]any{"handle": "a"}},
	}})
	require.Error(t, err)
	assert.Nil(t, s.Get("neo.blockTypes.t1"))
	assert.False(t, s.IsApplyingExternalChanges())
}

func TestStore_RemoveFallsBackToChanged(t *testing.T) {
	s := New()
	var got Event
	s.On("neo.blockTypeGroups.{uid}", Handlers{Changed: func(_ context.Context, ev Event) error {
		got = ev
		return nil
	}})
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "neo.blockTypeGroups.g1", map[string]any{"name": "G"}))

	require.NoError(t, s.Remove(ctx, "neo.blockTypeGroups.g1"))
	assert.Nil(t, got.NewValue)
	assert.Equal(t, map[string]any{"name": "G"}, got.OldValue)
	assert.Nil(t, s.Get("neo.blockTypeGroups"), "empty parents are pruned")
}
