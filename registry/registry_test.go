package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) seen() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func descriptor(main string) *types.Plugin {
	return &types.Plugin{
		Name:        "echo",
		Version:     "1.0.0",
		Category:    types.CategoryUtility,
		Main:        main,
		Permissions: &types.Permissions{Network: true},
		Hooks:       []types.HookSubscription{{Name: "before_task_execution"}},
	}
}

func echoPlugin(t *testing.T) plugin.Plugin {
	t.Helper()
	cfg := plugin.NewConfig()
	cfg.SetName("echo")
	cfg.SetVersion("1.0.0")
	cfg.AddHook("before_task_execution", func(ctx context.Context, hookCtx, config map[string]any) (map[string]any, error) {
		return hookCtx, nil
	})
	p, err := plugin.New(cfg)
	require.NoError(t, err)
	return p
}

func newTestRegistry(t *testing.T) (*Registry, *store.Memory, *plugin.LocalLoader, *recordingEmitter) {
	t.Helper()
	st := store.NewMemory()
	loader := plugin.NewLocalLoader()
	emitter := &recordingEmitter{}
	reg := New(st, loader, WithEmitter(emitter))
	return reg, st, loader, emitter
}

func TestInstall(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := st.GetPlugin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.PluginInactive, stored.Status)
	assert.Equal(t, "echo", stored.Name)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestInstallValidationPersistsNothing(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	desc := descriptor("echo")
	desc.Permissions = nil

	_, err := reg.Install(ctx, desc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrInvalidConfig))

	plugins, err := st.ListPlugins(ctx)
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestEnableIsIdempotent(t *testing.T) {
	reg, st, _, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)

	require.NoError(t, reg.Enable(ctx, id))
	require.NoError(t, reg.Enable(ctx, id))

	stored, err := st.GetPlugin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.PluginActive, stored.Status)
}

func TestLoadRequiresActiveStatus(t *testing.T) {
	reg, _, loader, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, loader.RegisterPlugin("echo", echoPlugin(t)))
	id, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)

	err = reg.Load(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rterr.ErrPluginNotActive))
}

func TestLoadSuccess(t *testing.T) {
	reg, _, loader, emitter := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, loader.RegisterPlugin("echo", echoPlugin(t)))
	id, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)
	require.NoError(t, reg.Enable(ctx, id))

	require.NoError(t, reg.Load(ctx, id))

	p, loaded := reg.Loaded(id)
	require.True(t, loaded)
	assert.Equal(t, "echo", p.Name())
	assert.Contains(t, emitter.seen(), events.PluginLoaded)
}

func TestLoadFailureIsObservableState(t *testing.T) {
	reg, st, loader, emitter := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, loader.RegisterFactory("broken", func(ctx context.Context, d *types.Plugin) (plugin.Plugin, error) {
		return nil, fmt.Errorf("missing shared object")
	}))
	desc := descriptor("broken")
	id, err := reg.Install(ctx, desc)
	require.NoError(t, err)
	require.NoError(t, reg.Enable(ctx, id))

	// The loader failure is not surfaced to the caller.
	require.NoError(t, reg.Load(ctx, id))

	_, loaded := reg.Loaded(id)
	assert.False(t, loaded)

	stored, err := st.GetPlugin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.PluginError, stored.Status)
	assert.Contains(t, emitter.seen(), events.PluginError)

	// Re-enabling clears the error state and makes the plugin loadable again.
	require.NoError(t, reg.Enable(ctx, id))
	stored, err = st.GetPlugin(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.PluginActive, stored.Status)
}

func TestUninstallRemovesRecord(t *testing.T) {
	reg, st, loader, emitter := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, loader.RegisterPlugin("echo", echoPlugin(t)))
	id, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)
	require.NoError(t, reg.Enable(ctx, id))
	require.NoError(t, reg.Load(ctx, id))

	require.NoError(t, reg.Uninstall(ctx, id))

	_, err = st.GetPlugin(ctx, id)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, loaded := reg.Loaded(id)
	assert.False(t, loaded)
	assert.Contains(t, emitter.seen(), events.PluginUninstalled)
}

func TestOperationsOnUnknownPlugin(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, err := range []error{
		reg.Enable(ctx, "missing"),
		reg.Disable(ctx, "missing"),
		reg.Load(ctx, "missing"),
		reg.Uninstall(ctx, "missing"),
	} {
		require.Error(t, err)
		assert.True(t, errors.Is(err, rterr.ErrPluginNotFound))
	}
}

func TestRestoreLoadsActivePlugins(t *testing.T) {
	reg, _, loader, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, loader.RegisterPlugin("echo", echoPlugin(t)))
	active, err := reg.Install(ctx, descriptor("echo"))
	require.NoError(t, err)
	require.NoError(t, reg.Enable(ctx, active))

	inactiveDesc := descriptor("echo")
	inactiveDesc.Name = "dormant"
	inactive, err := reg.Install(ctx, inactiveDesc)
	require.NoError(t, err)

	require.NoError(t, reg.Restore(ctx))

	_, loaded := reg.Loaded(active)
	assert.True(t, loaded)
	_, loaded = reg.Loaded(inactive)
	assert.False(t, loaded)
}
