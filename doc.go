// Package runtime is the plugin execution runtime for the Plexa agent
// platform.
//
// The runtime catalogs installed plugins, binds them to owners as configured
// instances, and dispatches named hooks through priority-ordered middleware
// chains. Alongside the execution core it carries two independent consumer
// surfaces: interactive debug sessions and a test runner for agent, plugin,
// and workflow targets.
//
// Construct a Runtime with New and the functional options, call Start to
// restore persisted state, and Shutdown to release plugins:
//
//	rt, err := runtime.New(
//		runtime.WithStore(st),
//		runtime.WithLoader(loader),
//		runtime.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := rt.Start(ctx); err != nil { ... }
//	defer rt.Shutdown(ctx)
//
//	out, err := rt.ExecuteHook(ctx, hook.BeforeTaskExecution, map[string]any{"step": 1})
package runtime
