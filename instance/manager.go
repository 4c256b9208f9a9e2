package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/hook"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/registry"
	"github.com/plexa-ai/runtime/rterr"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/types"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEmitter sets the event emitter. Default: events.Nop.
func WithEmitter(emitter events.Emitter) Option {
	return func(m *Manager) { m.emitter = emitter }
}

// CreateOption adjusts how a single instance is created.
type CreateOption func(*createConfig)

type createConfig struct {
	priorities map[string]int
}

// WithHookPriority overrides the plugin-declared priority of one hook
// subscription for this instance. Lower priorities run earlier.
func WithHookPriority(hookName string, priority int) CreateOption {
	return func(c *createConfig) {
		if c.priorities == nil {
			c.priorities = make(map[string]int)
		}
		c.priorities[hookName] = priority
	}
}

// Manager owns the instance lifecycle and the in-memory mirror of instance
// rows. The mirror is populated by Restore at startup and kept consistent by
// every mutating operation; it is never refreshed in the background.
//
// Manager implements hook.InstanceSource and registry.InstanceController.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	store      store.InstanceStore
	registry   *registry.Registry
	dispatcher *hook.Dispatcher
	logger     *slog.Logger
	emitter    events.Emitter

	mu    sync.RWMutex
	cache map[string]*types.Instance
}

// New creates a manager over the given store, registry, and dispatcher.
func New(st store.InstanceStore, reg *registry.Registry, disp *hook.Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		registry:   reg,
		dispatcher: disp,
		logger:     slog.Default(),
		emitter:    events.Nop{},
		cache:      make(map[string]*types.Instance),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create binds a loaded plugin to an owner with the given configuration.
//
// The plugin must be currently loaded, and config must satisfy the plugin's
// declared schema; validation failures persist nothing. The new instance
// starts enabled with zeroed metrics and its hooks registered.
func (m *Manager) Create(ctx context.Context, pluginID, ownerID string, config map[string]any, opts ...CreateOption) (string, error) {
	const op = "instance.Create"

	var cc createConfig
	for _, opt := range opts {
		opt(&cc)
	}

	desc, err := m.registry.Get(ctx, pluginID)
	if err != nil {
		return "", err
	}
	if _, loaded := m.registry.Loaded(pluginID); !loaded {
		return "", rterr.NewStateError(op, fmt.Errorf("%w: plugin %s", rterr.ErrPluginNotLoaded, pluginID))
	}

	if config == nil {
		config = make(map[string]any)
	}
	if !desc.ConfigSchema.IsZero() {
		if err := desc.ConfigSchema.Validate(config); err != nil {
			return "", rterr.NewValidationError(op, fmt.Errorf("%w: %s", rterr.ErrInvalidConfig, err))
		}
	}

	subs := make([]types.HookSubscription, len(desc.Hooks))
	copy(subs, desc.Hooks)
	for i, sub := range subs {
		if priority, ok := cc.priorities[sub.Name]; ok {
			subs[i].Priority = priority
		}
	}

	now := time.Now()
	inst := &types.Instance{
		ID:        uuid.NewString(),
		PluginID:  pluginID,
		OwnerID:   ownerID,
		Config:    config,
		Hooks:     subs,
		Status:    types.InstanceEnabled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.CreateInstance(ctx, inst); err != nil {
		return "", rterr.NewInternalError(op, err)
	}

	m.mu.Lock()
	m.cache[inst.ID] = inst
	m.mu.Unlock()

	m.dispatcher.Register(inst.ID, subs)

	m.emitter.Emit(events.New(events.InstanceCreated, map[string]any{
		"instance_id": inst.ID,
		"plugin_id":   pluginID,
		"owner_id":    ownerID,
	}))
	m.logger.Info("instance created",
		slog.String("instance_id", inst.ID),
		slog.String("plugin_id", pluginID),
		slog.String("owner_id", ownerID))
	return inst.ID, nil
}

// Enable marks the instance enabled and re-registers its hooks.
// Registration is idempotent, so enabling an enabled instance is harmless.
func (m *Manager) Enable(ctx context.Context, id string) error {
	const op = "instance.Enable"

	inst, err := m.setStatus(ctx, op, id, types.InstanceEnabled)
	if err != nil {
		return err
	}

	m.dispatcher.Register(id, inst.Hooks)

	m.emitter.Emit(events.New(events.InstanceEnabled, map[string]any{"instance_id": id}))
	m.logger.Info("instance enabled", slog.String("instance_id", id))
	return nil
}

// Disable marks the instance disabled and removes it from every hook
// registration.
func (m *Manager) Disable(ctx context.Context, id string) error {
	const op = "instance.Disable"

	if _, err := m.setStatus(ctx, op, id, types.InstanceDisabled); err != nil {
		return err
	}

	m.dispatcher.Unregister(id)

	m.emitter.Emit(events.New(events.InstanceDisabled, map[string]any{"instance_id": id}))
	m.logger.Info("instance disabled", slog.String("instance_id", id))
	return nil
}

// DisablePluginInstances disables every instance bound to the plugin.
// Invoked by the registry before the plugin itself is disabled or
// uninstalled.
func (m *Manager) DisablePluginInstances(ctx context.Context, pluginID string) error {
	instances, err := m.store.ListInstancesByPlugin(ctx, pluginID)
	if err != nil {
		return rterr.NewInternalError("instance.DisablePluginInstances", err)
	}
	for _, inst := range instances {
		if inst.Status != types.InstanceEnabled {
			continue
		}
		if err := m.Disable(ctx, inst.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a copy of the mirrored instance row.
func (m *Manager) Get(ctx context.Context, id string) (*types.Instance, error) {
	inst, err := m.get(ctx, "instance.Get", id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	cp := *inst
	m.mu.RUnlock()
	return &cp, nil
}

// ListByPlugin returns every stored instance bound to the plugin.
func (m *Manager) ListByPlugin(ctx context.Context, pluginID string) ([]*types.Instance, error) {
	instances, err := m.store.ListInstancesByPlugin(ctx, pluginID)
	if err != nil {
		return nil, rterr.NewInternalError("instance.ListByPlugin", err)
	}
	return instances, nil
}

// RecordExecution folds one hook invocation into the instance's metrics.
//
// The update is a full read-modify-write of the metrics record: the whole
// record is recomputed and replaced, never partially mutated, so interleaved
// updates cannot tear it.
func (m *Manager) RecordExecution(ctx context.Context, id string, duration time.Duration, failed bool) {
	const op = "instance.RecordExecution"

	m.mu.Lock()
	inst, ok := m.cache[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	inst.Metrics = inst.Metrics.Record(duration, failed)
	inst.UpdatedAt = time.Now()
	cp := *inst
	m.mu.Unlock()

	if err := m.store.UpdateInstance(ctx, &cp); err != nil {
		m.logger.Warn("failed to persist instance metrics",
			slog.String("instance_id", id),
			slog.Any("error", err))
	}
}

// Resolve returns the invocation target for a registered instance: the
// loaded plugin object and the instance's validated configuration. ok is
// false for disabled instances and for instances whose plugin is not loaded.
func (m *Manager) Resolve(id string) (plugin.Plugin, map[string]any, bool) {
	m.mu.RLock()
	inst, ok := m.cache[id]
	if !ok || !inst.Enabled() {
		m.mu.RUnlock()
		return nil, nil, false
	}
	pluginID := inst.PluginID
	config := inst.Config
	m.mu.RUnlock()

	p, loaded := m.registry.Loaded(pluginID)
	if !loaded {
		return nil, nil, false
	}
	return p, config, true
}

// Restore populates the in-memory mirror from the store and re-registers
// the hooks of every enabled instance. Called once at startup, after the
// registry has restored its plugins.
func (m *Manager) Restore(ctx context.Context) error {
	const op = "instance.Restore"

	instances, err := m.store.ListInstances(ctx)
	if err != nil {
		return rterr.NewInternalError(op, err)
	}

	m.mu.Lock()
	m.cache = make(map[string]*types.Instance, len(instances))
	for _, inst := range instances {
		m.cache[inst.ID] = inst
	}
	m.mu.Unlock()

	for _, inst := range instances {
		if !inst.Enabled() {
			continue
		}
		m.dispatcher.Register(inst.ID, inst.Hooks)
	}

	m.logger.Info("instances restored", slog.Int("count", len(instances)))
	return nil
}

func (m *Manager) get(ctx context.Context, op, id string) (*types.Instance, error) {
	m.mu.RLock()
	inst, ok := m.cache[id]
	m.mu.RUnlock()
	if ok {
		return inst, nil
	}

	stored, err := m.store.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, rterr.NewNotFoundError(op, fmt.Errorf("%w: %s", rterr.ErrInstanceNotFound, id))
		}
		return nil, rterr.NewInternalError(op, err)
	}

	m.mu.Lock()
	m.cache[id] = stored
	m.mu.Unlock()
	return stored, nil
}

// setStatus flips the instance status under the mirror lock and persists
// the full row.
func (m *Manager) setStatus(ctx context.Context, op, id string, status types.InstanceStatus) (types.Instance, error) {
	inst, err := m.get(ctx, op, id)
	if err != nil {
		return types.Instance{}, err
	}

	m.mu.Lock()
	inst.Status = status
	inst.UpdatedAt = time.Now()
	cp := *inst
	m.mu.Unlock()

	if err := m.store.UpdateInstance(ctx, &cp); err != nil {
		return types.Instance{}, rterr.NewInternalError(op, err)
	}
	return cp, nil
}
