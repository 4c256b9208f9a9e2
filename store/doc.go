// Package store defines the repository interfaces for the runtime's five
// persisted entity types (plugins, instances, debug sessions, test suites)
// and provides two implementations: an in-memory store used as the
// process-local mirror and in tests, and an etcd-backed store for durable
// persistence.
//
// Stores have full-record-replace semantics: Update writes the whole entity,
// never a partial patch. The runtime populates its in-memory mirror once at
// startup and keeps it consistent on every mutating operation; there is no
// background refresh.
package store
