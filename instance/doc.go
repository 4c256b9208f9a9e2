// Package instance binds loaded plugins to owners as configured instances.
//
// The manager validates configuration against the owning plugin's declared
// schema, keeps an in-memory mirror of instance rows, registers enabled
// instances with the hook dispatcher, and folds execution metrics back into
// the store as full-record replacements.
package instance
