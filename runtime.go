package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/plexa-ai/runtime/debug"
	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/hook"
	"github.com/plexa-ai/runtime/instance"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/registry"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/testkit"
	"github.com/plexa-ai/runtime/types"
)

// Runtime wires the plugin registry, instance manager, hook dispatcher,
// debug session manager, and test runner over one store and one event
// emitter.
type Runtime struct {
	logger  *slog.Logger
	store   store.Store
	emitter events.Emitter
	loader  plugin.Loader

	registry   *registry.Registry
	instances  *instance.Manager
	dispatcher *hook.Dispatcher
	debug      *debug.Manager
	tests      *testkit.Runner
}

// New builds a runtime from the provided options. Components are wired but
// no persisted state is touched until Start.
func New(opts ...Option) (*Runtime, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if cfg.store == nil {
		cfg.store = store.NewMemory()
	}
	if cfg.emitter == nil {
		cfg.emitter = events.Nop{}
	}
	if cfg.loader == nil {
		cfg.loader = plugin.NewLocalLoader()
	}

	dispatcherOpts := []hook.Option{
		hook.WithLogger(cfg.logger),
		hook.WithEmitter(cfg.emitter),
	}
	if cfg.tracer != nil {
		dispatcherOpts = append(dispatcherOpts, hook.WithTracerProvider(cfg.tracer))
	}
	if cfg.meter != nil {
		dispatcherOpts = append(dispatcherOpts, hook.WithMeterProvider(cfg.meter))
	}
	dispatcher := hook.NewDispatcher(dispatcherOpts...)

	reg := registry.New(cfg.store, cfg.loader,
		registry.WithLogger(cfg.logger),
		registry.WithEmitter(cfg.emitter))

	instances := instance.New(cfg.store, reg, dispatcher,
		instance.WithLogger(cfg.logger),
		instance.WithEmitter(cfg.emitter))

	reg.BindInstances(instances)
	dispatcher.BindSource(instances)

	sessions, err := debug.NewManager(cfg.store,
		debug.WithLogger(cfg.logger),
		debug.WithEmitter(cfg.emitter))
	if err != nil {
		return nil, fmt.Errorf("failed to create debug manager: %w", err)
	}

	rt := &Runtime{
		logger:     cfg.logger,
		store:      cfg.store,
		emitter:    cfg.emitter,
		loader:     cfg.loader,
		registry:   reg,
		instances:  instances,
		dispatcher: dispatcher,
		debug:      sessions,
	}
	if cfg.executor != nil {
		rt.tests = testkit.NewRunner(cfg.store, cfg.executor,
			testkit.WithLogger(cfg.logger),
			testkit.WithEmitter(cfg.emitter))
	}
	return rt, nil
}

// Start restores persisted state: every active plugin is (re)loaded and
// every enabled instance is mirrored into memory with its hooks
// re-registered.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.registry.Restore(ctx); err != nil {
		return err
	}
	if err := r.instances.Restore(ctx); err != nil {
		return err
	}
	r.logger.Info("runtime started")
	return nil
}

// Shutdown stops every loaded plugin and releases runtime resources.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if err := r.registry.Shutdown(ctx); err != nil {
		return err
	}
	r.logger.Info("runtime stopped")
	return nil
}

// ExecuteHook dispatches the named hook chain over hookCtx. Safe to call
// for hooks without registrations; the context comes back unchanged.
func (r *Runtime) ExecuteHook(ctx context.Context, name string, hookCtx map[string]any) (map[string]any, error) {
	return r.dispatcher.Execute(ctx, name, hookCtx)
}

// Health reports the health of every loaded plugin, keyed by plugin ID.
func (r *Runtime) Health(ctx context.Context) map[string]types.HealthStatus {
	return r.registry.Health(ctx)
}

// Registry returns the plugin registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Instances returns the instance manager.
func (r *Runtime) Instances() *instance.Manager { return r.instances }

// Hooks returns the hook dispatcher.
func (r *Runtime) Hooks() *hook.Dispatcher { return r.dispatcher }

// Debug returns the debug session manager.
func (r *Runtime) Debug() *debug.Manager { return r.debug }

// Tests returns the test runner, or nil when no executor was configured.
func (r *Runtime) Tests() *testkit.Runner { return r.tests }

// Loader returns the configured plugin loader. Callers using the default
// local loader can type-assert to *plugin.LocalLoader to register factories.
func (r *Runtime) Loader() plugin.Loader { return r.loader }
