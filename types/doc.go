// Package types defines the core entity types shared across the Plexa plugin
// runtime: plugin descriptors, plugin instances, performance metrics, and
// component health statuses.
//
// These types are persistence-neutral. The store package defines how they are
// durably stored; this package only defines their shape and invariants.
package types
