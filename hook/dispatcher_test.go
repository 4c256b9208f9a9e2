package hook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/plexa-ai/runtime/plugin"
	"github.com/plexa-ai/runtime/types"
)

// stubPlugin implements plugin.Plugin with a single hook function.
type stubPlugin struct {
	name string
	fn   func(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error)
}

func (s *stubPlugin) Name() string        { return s.name }
func (s *stubPlugin) Version() string     { return "1.0.0" }
func (s *stubPlugin) Description() string { return "stub" }
func (s *stubPlugin) Hooks() []string     { return nil }

func (s *stubPlugin) ExecuteHook(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
	return s.fn(ctx, hook, hookCtx, config)
}

func (s *stubPlugin) Initialize(ctx context.Context, config map[string]any) error { return nil }
func (s *stubPlugin) Shutdown(ctx context.Context) error                          { return nil }
func (s *stubPlugin) Health(ctx context.Context) types.HealthStatus {
	return types.NewHealthyStatus("ok")
}

// stubSource resolves every known instance to the same plugin with a
// per-instance config and records metric updates.
type stubSource struct {
	plugins  map[string]plugin.Plugin
	configs  map[string]map[string]any
	disabled map[string]bool
	recorded []string
	failed   []string
}

func newStubSource() *stubSource {
	return &stubSource{
		plugins:  make(map[string]plugin.Plugin),
		configs:  make(map[string]map[string]any),
		disabled: make(map[string]bool),
	}
}

func (s *stubSource) add(id string, p plugin.Plugin) {
	s.plugins[id] = p
	s.configs[id] = map[string]any{"instance": id}
}

func (s *stubSource) Resolve(id string) (plugin.Plugin, map[string]any, bool) {
	if s.disabled[id] {
		return nil, nil, false
	}
	p, ok := s.plugins[id]
	if !ok {
		return nil, nil, false
	}
	return p, s.configs[id], true
}

func (s *stubSource) RecordExecution(ctx context.Context, id string, d time.Duration, failed bool) {
	s.recorded = append(s.recorded, id)
	if failed {
		s.failed = append(s.failed, id)
	}
}

// appendPlugin returns a plugin whose hook appends the instance id from the
// config to an "order" slice in the chain context.
func appendPlugin(name string) *stubPlugin {
	return &stubPlugin{
		name: name,
		fn: func(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
			order, _ := hookCtx["order"].([]string)
			hookCtx["order"] = append(order, config["instance"].(string))
			return hookCtx, nil
		},
	}
}

func TestExecuteIdentityWithoutRegistrations(t *testing.T) {
	d := NewDispatcher()
	d.BindSource(newStubSource())

	in := map[string]any{"step": 1}
	out, err := d.Execute(context.Background(), "nonexistent_hook", in)

	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestExecutePriorityOrdering(t *testing.T) {
	source := newStubSource()
	source.add("i-30", appendPlugin("p"))
	source.add("i-70", appendPlugin("p"))
	source.add("i-10", appendPlugin("p"))

	d := NewDispatcher()
	d.BindSource(source)
	d.Register("i-30", []types.HookSubscription{{Name: "test_hook", Priority: 30}})
	d.Register("i-70", []types.HookSubscription{{Name: "test_hook", Priority: 70}})
	d.Register("i-10", []types.HookSubscription{{Name: "test_hook", Priority: 10}})

	out, err := d.Execute(context.Background(), "test_hook", map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, []string{"i-10", "i-30", "i-70"}, out["order"])
	assert.Equal(t, []string{"i-10", "i-30", "i-70"}, d.Registered("test_hook"))
}

func TestRegisterIdempotent(t *testing.T) {
	d := NewDispatcher()
	subs := []types.HookSubscription{{Name: "test_hook", Priority: 20}}

	d.Register("i-1", subs)
	d.Register("i-1", subs)
	d.Register("i-1", []types.HookSubscription{{Name: "test_hook", Priority: 90}})

	assert.Equal(t, []string{"i-1"}, d.Registered("test_hook"))
}

func TestDefaultPriority(t *testing.T) {
	source := newStubSource()
	source.add("i1", appendPlugin("p"))
	source.add("i2", appendPlugin("p"))

	d := NewDispatcher()
	d.BindSource(source)
	// i1 declares no priority and defaults to 50; i2 runs first at 10.
	d.Register("i1", []types.HookSubscription{{Name: BeforeTaskExecution}})
	d.Register("i2", []types.HookSubscription{{Name: BeforeTaskExecution, Priority: 10}})

	out, err := d.Execute(context.Background(), BeforeTaskExecution, map[string]any{"step": 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"i2", "i1"}, out["order"])
	assert.Equal(t, 1, out["step"])
}

func TestUnregisterRemovesFromAllHooks(t *testing.T) {
	d := NewDispatcher()
	d.Register("i-1", []types.HookSubscription{
		{Name: "hook_a", Priority: 10},
		{Name: "hook_b", Priority: 20},
	})
	d.Register("i-2", []types.HookSubscription{{Name: "hook_a", Priority: 30}})

	d.Unregister("i-1")

	assert.Equal(t, []string{"i-2"}, d.Registered("hook_a"))
	assert.Empty(t, d.Registered("hook_b"))
}

func TestNonCriticalFailureIsolation(t *testing.T) {
	source := newStubSource()
	source.add("first", appendPlugin("p"))
	source.add("middle", &stubPlugin{name: "p", fn: func(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
		return nil, fmt.Errorf("transient failure")
	}})
	source.add("last", appendPlugin("p"))

	d := NewDispatcher()
	d.BindSource(source)
	d.Register("first", []types.HookSubscription{{Name: "chain", Priority: 10}})
	d.Register("middle", []types.HookSubscription{{Name: "chain", Priority: 20}})
	d.Register("last", []types.HookSubscription{{Name: "chain", Priority: 30}})

	out, err := d.Execute(context.Background(), "chain", map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "last"}, out["order"])
	assert.Equal(t, []string{"first", "middle", "last"}, source.recorded)
	assert.Equal(t, []string{"middle"}, source.failed)
}

func TestCriticalFailureAbortsChain(t *testing.T) {
	source := newStubSource()
	source.add("first", &stubPlugin{name: "p", fn: func(ctx context.Context, hook string, hookCtx, config map[string]any) (map[string]any, error) {
		return nil, Critical(fmt.Errorf("unsafe to continue"))
	}})
	source.add("second", appendPlugin("p"))
	source.add("third", appendPlugin("p"))

	d := NewDispatcher()
	d.BindSource(source)
	d.Register("first", []types.HookSubscription{{Name: "chain", Priority: 10}})
	d.Register("second", []types.HookSubscription{{Name: "chain", Priority: 20}})
	d.Register("third", []types.HookSubscription{{Name: "chain", Priority: 30}})

	out, err := d.Execute(context.Background(), "chain", map[string]any{"step": 1})

	require.Error(t, err)
	var hookErr *Error
	require.True(t, errors.As(err, &hookErr))
	assert.True(t, hookErr.Critical)
	assert.Equal(t, "chain", hookErr.Hook)
	assert.Equal(t, "first", hookErr.InstanceID)

	// Later instances never executed; the caller gets the pre-failure context.
	assert.Nil(t, out["order"])
	assert.Equal(t, []string{"first"}, source.recorded)
}

func TestDisabledInstanceSkipped(t *testing.T) {
	source := newStubSource()
	source.add("on", appendPlugin("p"))
	source.add("off", appendPlugin("p"))
	source.disabled["off"] = true

	d := NewDispatcher()
	d.BindSource(source)
	d.Register("on", []types.HookSubscription{{Name: "chain", Priority: 10}})
	d.Register("off", []types.HookSubscription{{Name: "chain", Priority: 5}})

	out, err := d.Execute(context.Background(), "chain", map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, out["order"])
}

func TestExecuteEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	source := newStubSource()
	source.add("i-1", appendPlugin("p"))

	d := NewDispatcher(WithTracerProvider(tp))
	d.BindSource(source)
	d.Register("i-1", []types.HookSubscription{{Name: "traced_hook"}})

	_, err := d.Execute(context.Background(), "traced_hook", map[string]any{})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	names := []string{spans[0].Name(), spans[1].Name()}
	assert.Contains(t, names, "hook.chain")
	assert.Contains(t, names, "hook.instance")
}
