package hook

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/types"
)

// InstanceSource resolves registered instance ids into invocation targets
// and receives metric updates after every invocation. Implemented by the
// instance manager; bound after construction.
type InstanceSource interface {
	// Resolve returns the loaded plugin object and validated configuration
	// for the instance. ok is false when the instance is disabled or its
	// plugin is not loaded; the dispatcher then skips it.
	Resolve(instanceID string) (p plugin.Plugin, config map[string]any, ok bool)

	// RecordExecution folds one invocation into the instance's metrics.
	RecordExecution(ctx context.Context, instanceID string, duration time.Duration, failed bool)
}

// registration is the per-hook bookkeeping: a priority-ordered id slice plus
// the priority of each id. Order is a stable ascending sort by priority.
type registration struct {
	ids        []string
	priorities map[string]int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithEmitter sets the event emitter. Default: events.Nop.
func WithEmitter(emitter events.Emitter) Option {
	return func(d *Dispatcher) { d.emitter = emitter }
}

// WithTracerProvider sets the tracer provider for chain and instance spans.
// Default: no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider for dispatch metrics.
// Default: no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) { d.meter = mp.Meter(instrumentationName) }
}

const instrumentationName = "github.com/plexa-ai/runtime/hook"

// Dispatcher maintains hook registrations and executes hook chains.
//
// Separate Execute calls may run concurrently; within one call the chain is
// strictly sequential. The registration table is shared mutable state and is
// snapshotted under a read lock before each chain runs.
type Dispatcher struct {
	logger  *slog.Logger
	emitter events.Emitter
	tracer  trace.Tracer
	meter   metric.Meter

	executions metric.Int64Counter
	failures   metric.Int64Counter
	chainTime  metric.Float64Histogram

	mu     sync.RWMutex
	hooks  map[string]*registration
	source InstanceSource
}

// NewDispatcher creates a dispatcher with no registrations.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:  slog.Default(),
		emitter: events.Nop{},
		tracer:  tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:   metricnoop.NewMeterProvider().Meter(instrumentationName),
		hooks:   make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(d)
	}

	// Instrument creation on the no-op meter cannot fail; on a real meter a
	// failure only disables that metric.
	d.executions, _ = d.meter.Int64Counter("plexa.hook.executions",
		metric.WithDescription("Number of per-instance hook invocations"))
	d.failures, _ = d.meter.Int64Counter("plexa.hook.failures",
		metric.WithDescription("Number of failed per-instance hook invocations"))
	d.chainTime, _ = d.meter.Float64Histogram("plexa.hook.chain.duration",
		metric.WithDescription("Hook chain duration"),
		metric.WithUnit("s"))
	return d
}

// BindSource attaches the instance source. Must be called during wiring,
// before Execute runs.
func (d *Dispatcher) BindSource(source InstanceSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
}

// Register inserts the instance into the registration list of every
// subscribed hook at its declared priority (DefaultPriority when the
// subscription declares none). Registration is idempotent: an id already
// present in a hook's list is left untouched.
func (d *Dispatcher) Register(instanceID string, subs []types.HookSubscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sub := range subs {
		if sub.Name == "" {
			continue
		}
		reg := d.hooks[sub.Name]
		if reg == nil {
			reg = &registration{priorities: make(map[string]int)}
			d.hooks[sub.Name] = reg
		}
		if _, exists := reg.priorities[instanceID]; exists {
			continue
		}
		priority := sub.Priority
		if priority == 0 {
			priority = DefaultPriority
		}
		reg.priorities[instanceID] = priority
		reg.ids = append(reg.ids, instanceID)
		sort.SliceStable(reg.ids, func(i, j int) bool {
			return reg.priorities[reg.ids[i]] < reg.priorities[reg.ids[j]]
		})
	}
}

// Unregister removes the instance from every hook's registration.
func (d *Dispatcher) Unregister(instanceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, reg := range d.hooks {
		if _, ok := reg.priorities[instanceID]; !ok {
			continue
		}
		delete(reg.priorities, instanceID)
		ids := reg.ids[:0]
		for _, id := range reg.ids {
			if id != instanceID {
				ids = append(ids, id)
			}
		}
		reg.ids = ids
		if len(reg.ids) == 0 {
			delete(d.hooks, name)
		}
	}
}

// Registered returns the instance ids registered for the hook, in dispatch
// order.
func (d *Dispatcher) Registered(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg := d.hooks[name]
	if reg == nil {
		return nil
	}
	out := make([]string, len(reg.ids))
	copy(out, reg.ids)
	return out
}

// Execute runs the hook's registered instances as a sequential middleware
// chain over hookCtx and returns the final context.
//
// A hook with no registrations returns hookCtx unchanged. Each enabled
// instance receives the current context and its own configuration; the
// returned map replaces the context for the next instance. A failing
// instance is recorded and skipped unless its error is a critical
// hook.Error, which aborts the chain immediately.
func (d *Dispatcher) Execute(ctx context.Context, name string, hookCtx map[string]any) (map[string]any, error) {
	d.mu.RLock()
	source := d.source
	var ids []string
	if reg := d.hooks[name]; reg != nil {
		ids = make([]string, len(reg.ids))
		copy(ids, reg.ids)
	}
	d.mu.RUnlock()

	if len(ids) == 0 || source == nil {
		return hookCtx, nil
	}

	chainStart := time.Now()
	ctx, chainSpan := d.tracer.Start(ctx, "hook.chain",
		trace.WithAttributes(
			attribute.String("hook.name", name),
			attribute.Int("hook.registered", len(ids)),
		))
	defer func() {
		d.chainTime.Record(ctx, time.Since(chainStart).Seconds(),
			metric.WithAttributes(attribute.String("hook.name", name)))
		chainSpan.End()
	}()

	for _, id := range ids {
		p, config, ok := source.Resolve(id)
		if !ok {
			continue
		}

		instCtx, span := d.tracer.Start(ctx, "hook.instance",
			trace.WithAttributes(
				attribute.String("hook.name", name),
				attribute.String("instance.id", id),
				attribute.String("plugin.name", p.Name()),
			))
		start := time.Now()
		out, err := p.ExecuteHook(instCtx, name, hookCtx, config)
		duration := time.Since(start)
		span.End()

		d.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("hook.name", name)))
		source.RecordExecution(ctx, id, duration, err != nil)

		if err != nil {
			d.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("hook.name", name)))
			d.emitter.Emit(events.New(events.HookError, map[string]any{
				"hook":        name,
				"instance_id": id,
				"error":       err.Error(),
			}))

			var hookErr *Error
			if errors.As(err, &hookErr) && hookErr.Critical {
				hookErr.Hook = name
				hookErr.InstanceID = id
				d.logger.Warn("hook chain aborted",
					slog.String("hook", name),
					slog.String("instance_id", id),
					slog.Any("error", err))
				return hookCtx, hookErr
			}

			d.logger.Warn("hook instance failed",
				slog.String("hook", name),
				slog.String("instance_id", id),
				slog.Any("error", err))
			continue
		}

		hookCtx = out
	}

	return hookCtx, nil
}
