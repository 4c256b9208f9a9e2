package runtime

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/plexa-ai/runtime/events"
	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/store"
	"github.com/plexa-ai/runtime/testkit"
)

// Option configures a Runtime.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	store    store.Store
	emitter  events.Emitter
	loader   plugin.Loader
	executor testkit.Executor
	tracer   trace.TracerProvider
	meter    metric.MeterProvider
}

// WithLogger sets the structured logger used by every component.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithStore sets the persistence backend. Default: store.NewMemory().
func WithStore(st store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithEmitter sets the event emitter for observable runtime events.
// Default: events are discarded.
func WithEmitter(emitter events.Emitter) Option {
	return func(c *config) { c.emitter = emitter }
}

// WithLoader sets the plugin loading strategy. Default: an empty
// plugin.LocalLoader (register factories on it via Loader()).
func WithLoader(loader plugin.Loader) Option {
	return func(c *config) { c.loader = loader }
}

// WithExecutor sets the test executor. The test runner is only available
// when an executor is configured.
func WithExecutor(executor testkit.Executor) Option {
	return func(c *config) { c.executor = executor }
}

// WithTracerProvider enables OpenTelemetry tracing of hook chains.
// Default: no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracer = tp }
}

// WithMeterProvider enables OpenTelemetry metrics for hook dispatch.
// Default: no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.meter = mp }
}
