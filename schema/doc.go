// Package schema provides a JSON Schema subset used to declare and validate
// plugin instance configurations.
//
// Plugins declare a configuration schema in their descriptor; the instance
// manager validates every candidate configuration against that schema before
// an instance is persisted. Validation covers required keys, primitive types,
// numeric and string constraints, enums, and nested objects and arrays.
package schema
