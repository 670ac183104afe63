// Package registry holds the elementary block implementations available to
// an execution context.
//
// The registry is an explicit value threaded through construction, never
// ambient global state: two engines with different registries can run in the
// same process without interfering. Each registered type pairs a Definition
// (the block's connectors and default parameters, the single source of truth
// for instantiation and validation) with the Go function implementing its
// behavior.
package registry
