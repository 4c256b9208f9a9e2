package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// InstanceController is the slice of the instance manager the registry needs
// for its disable/uninstall cascades. Bound after construction to keep the
// dependency direction registry → instances out of the package graph.
type InstanceController interface {
	// DisablePluginInstances disables every instance bound to the plugin
	// and removes their hook registrations.
	DisablePluginInstances(ctx context.Context, pluginID string) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithEmitter sets the event emitter. Default: events.Nop.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Registry) { r.emitter = emitter }
}

// Registry catalogs plugin descriptors and caches loaded plugin objects.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	store   store.PluginStore
	loader  plugin.Loader
	logger  *slog.Logger
	emitter events.Emitter

	mu        sync.RWMutex
	loaded    map[string]plugin.Plugin
	instances InstanceController
}

// New creates a registry over the given descriptor store and loader.
func New(st store.PluginStore, loader plugin.Loader, opts ...Option) *Registry {
	r := &Registry{
		store:   st,
		loader:  loader,
		logger:  slog.Default(),
		emitter: events.Nop{},
		loaded:  make(map[string]plugin.Plugin),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BindInstances attaches the instance manager used for disable/uninstall
// cascades. Must be called during wiring, before lifecycle operations run.
func (r *Registry) BindInstances(ic InstanceController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = ic
}

// Install validates the descriptor and stores it with status inactive.
// Validation failures persist nothing.
func (r *Registry) Install(ctx context.Context, desc *types.Plugin) (string, error) {
	const op = "registry.Install"

	if desc == nil {
		return "", rterr.NewValidationError(op, fmt.Errorf("%w: descriptor is nil", rterr.ErrInvalidConfig))
	}
	if err := desc.Validate(); err != nil {
		return "", rterr.NewValidationError(op, fmt.Errorf("%w: %s", rterr.ErrInvalidConfig, err))
	}

	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	now := time.Now()
	desc.Status = types.PluginInactive
	desc.CreatedAt = now
	desc.UpdatedAt = now

	if err := r.store.CreatePlugin(ctx, desc); err != nil {
		return "", rterr.NewInternalError(op, err)
	}

	r.logger.Info("plugin installed",
		slog.String("plugin_id", desc.ID),
		slog.String("name", desc.Name),
		slog.String("version", desc.Version))
	return desc.ID, nil
}

// Uninstall disables every instance bound to the plugin, discards the loaded
// object, and removes the descriptor record.
func (r *Registry) Uninstall(ctx context.Context, id string) error {
	const op = "registry.Uninstall"

	desc, err := r.get(ctx, op, id)
	if err != nil {
		return err
	}

	if err := r.disableInstances(ctx, id); err != nil {
		return rterr.NewInternalError(op, err)
	}
	r.unload(ctx, id)

	if err := r.store.DeletePlugin(ctx, id); err != nil {
		return rterr.NewInternalError(op, err)
	}

	r.emitter.Emit(events.New(events.PluginUninstalled, map[string]any{
		"plugin_id": id,
		"name":      desc.Name,
	}))
	r.logger.Info("plugin uninstalled",
		slog.String("plugin_id", id),
		slog.String("name", desc.Name))
	return nil
}

// Enable marks the plugin active, making it eligible for loading. Enabling
// an already-active plugin is a no-op. Enabling also clears an error status.
func (r *Registry) Enable(ctx context.Context, id string) error {
	const op = "registry.Enable"

	desc, err := r.get(ctx, op, id)
	if err != nil {
		return err
	}
	if desc.Status == types.PluginActive {
		return nil
	}

	desc.Status = types.PluginActive
	desc.UpdatedAt = time.Now()
	if err := r.store.UpdatePlugin(ctx, desc); err != nil {
		return rterr.NewInternalError(op, err)
	}

	r.emitter.Emit(events.New(events.PluginEnabled, map[string]any{"plugin_id": id}))
	r.logger.Info("plugin enabled", slog.String("plugin_id", id))
	return nil
}

// Disable disables every instance bound to the plugin, discards the loaded
// object, and marks the plugin inactive.
func (r *Registry) Disable(ctx context.Context, id string) error {
	const op = "registry.Disable"

	desc, err := r.get(ctx, op, id)
	if err != nil {
		return err
	}

	if err := r.disableInstances(ctx, id); err != nil {
		return rterr.NewInternalError(op, err)
	}
	r.unload(ctx, id)

	if desc.Status != types.PluginInactive {
		desc.Status = types.PluginInactive
		desc.UpdatedAt = time.Now()
		if err := r.store.UpdatePlugin(ctx, desc); err != nil {
			return rterr.NewInternalError(op, err)
		}
	}

	r.emitter.Emit(events.New(events.PluginDisabled, map[string]any{"plugin_id": id}))
	r.logger.Info("plugin disabled", slog.String("plugin_id", id))
	return nil
}

// Load turns the plugin's descriptor into a callable plugin object.
//
// Load only proceeds while the stored status is active. A loader failure is
// not surfaced to the caller: the plugin is marked status=error, a
// plugin.error event fires, and Load returns nil. The error state is
// observable and recoverable via Enable.
func (r *Registry) Load(ctx context.Context, id string) error {
	const op = "registry.Load"

	desc, err := r.get(ctx, op, id)
	if err != nil {
		return err
	}
	if desc.Status != types.PluginActive {
		return rterr.NewStateError(op, fmt.Errorf("%w: plugin %s has status %s",
			rterr.ErrPluginNotActive, id, desc.Status))
	}

	r.mu.RLock()
	_, already := r.loaded[id]
	r.mu.RUnlock()
	if already {
		return nil
	}

	p, loadErr := r.loader.Load(ctx, desc)
	if loadErr == nil {
		loadErr = p.Initialize(ctx, nil)
	}
	if loadErr != nil {
		desc.Status = types.PluginError
		desc.UpdatedAt = time.Now()
		if err := r.store.UpdatePlugin(ctx, desc); err != nil {
			r.logger.Warn("failed to persist plugin error status",
				slog.String("plugin_id", id),
				slog.Any("error", err))
		}
		r.emitter.Emit(events.New(events.PluginError, map[string]any{
			"plugin_id": id,
			"error":     loadErr.Error(),
		}))
		r.logger.Warn("plugin load failed",
			slog.String("plugin_id", id),
			slog.Any("error", loadErr))
		return nil
	}

	r.mu.Lock()
	r.loaded[id] = p
	r.mu.Unlock()

	r.emitter.Emit(events.New(events.PluginLoaded, map[string]any{
		"plugin_id": id,
		"name":      desc.Name,
		"version":   desc.Version,
	}))
	r.logger.Info("plugin loaded",
		slog.String("plugin_id", id),
		slog.String("name", desc.Name))
	return nil
}

// Loaded returns the cached plugin object, if the plugin is loaded.
func (r *Registry) Loaded(id string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.loaded[id]
	return p, ok
}

// Get returns the stored descriptor.
func (r *Registry) Get(ctx context.Context, id string) (*types.Plugin, error) {
	return r.get(ctx, "registry.Get", id)
}

// List returns every stored descriptor.
func (r *Registry) List(ctx context.Context) ([]*types.Plugin, error) {
	plugins, err := r.store.ListPlugins(ctx)
	if err != nil {
		return nil, rterr.NewInternalError("registry.List", err)
	}
	return plugins, nil
}

// Restore loads every plugin whose stored status is active. Called once at
// startup; individual load failures follow the usual observable-state path
// and do not stop the restore.
func (r *Registry) Restore(ctx context.Context) error {
	const op = "registry.Restore"

	plugins, err := r.store.ListPlugins(ctx)
	if err != nil {
		return rterr.NewInternalError(op, err)
	}
	for _, desc := range plugins {
		if desc.Status != types.PluginActive {
			continue
		}
		if err := r.Load(ctx, desc.ID); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown calls Shutdown on every loaded plugin and clears the cache.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	loaded := r.loaded
	r.loaded = make(map[string]plugin.Plugin)
	r.mu.Unlock()

	for id, p := range loaded {
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Warn("plugin shutdown failed",
				slog.String("plugin_id", id),
				slog.Any("error", err))
		}
	}
	return nil
}

// Health aggregates the health of every loaded plugin.
func (r *Registry) Health(ctx context.Context) map[string]types.HealthStatus {
	r.mu.RLock()
	loaded := make(map[string]plugin.Plugin, len(r.loaded))
	for id, p := range r.loaded {
		loaded[id] = p
	}
	r.mu.RUnlock()

	out := make(map[string]types.HealthStatus, len(loaded))
	for id, p := range loaded {
		out[id] = p.Health(ctx)
	}
	return out
}

func (r *Registry) get(ctx context.Context, op, id string) (*types.Plugin, error) {
	desc, err := r.store.GetPlugin(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, rterr.NewNotFoundError(op, fmt.Errorf("%w: %s", rterr.ErrPluginNotFound, id))
		}
		return nil, rterr.NewInternalError(op, err)
	}
	return desc, nil
}

func (r *Registry) disableInstances(ctx context.Context, pluginID string) error {
	r.mu.RLock()
	ic := r.instances
	r.mu.RUnlock()
	if ic == nil {
		return nil
	}
	return ic.DisablePluginInstances(ctx, pluginID)
}

// unload discards the cached plugin object, shutting it down if present.
func (r *Registry) unload(ctx context.Context, id string) {
	r.mu.Lock()
	p, ok := r.loaded[id]
	delete(r.loaded, id)
	r.mu.Unlock()

	if ok {
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Warn("plugin shutdown failed",
				slog.String("plugin_id", id),
				slog.Any("error", err))
		}
	}
}
