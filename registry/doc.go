// Package registry catalogs installed plugin descriptors and turns active
// descriptors into callable plugin objects.
//
// The registry owns the plugin lifecycle: install → enable → load →
// disable/uninstall. Loading is deliberately non-throwing for callers that
// merely dispatch hooks: a failed load marks the plugin status=error and
// emits a plugin.error event instead of surfacing an error. Disable and
// uninstall cascade to the plugin's instances before touching the plugin
// record, so no enabled instance ever outlives its plugin.
package registry
