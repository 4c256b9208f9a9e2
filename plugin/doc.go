// Package plugin defines the executable plugin capability and the loading
// strategies that turn an installed descriptor into a callable object.
//
// A loaded plugin exposes a single execution capability, ExecuteHook, which
// receives a hook name, the shared chain context, and the invoking instance's
// configuration, and returns the (possibly transformed) context. How the
// plugin code actually runs is a loader concern: LocalLoader serves plugins
// built in-process with the Builder API, GRPCLoader proxies calls to an
// out-of-process plugin host. Both strategies satisfy the same Loader
// interface, so the registry never knows which one is behind a descriptor.
package plugin
