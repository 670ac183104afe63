// Package model defines the immutable, format-agnostic description of a
// block diagram: blocks, connectors, parameters, and connections.
//
// A model is produced by a loader (see internal/hclmodel) or assembled
// programmatically, and is consumed read-only by the validator and the
// execution engine. Identity inside a composite is structural: child
// instances are addressed by name, and nested instances by dotted paths,
// never by pointer. This lets one block definition back any number of
// concurrently running execution contexts.
package model
