// Package exec is the runtime half of the engine: the execution context
// that owns one model instantiation's signal table, the cached evaluation
// order, and the block evaluator driven over it on every step.
//
// A context moves through Unvalidated -> Initialized -> Stepping, and into
// Faulted on any runtime failure. Evaluation is single-threaded and
// synchronous: within one step, instances run in the cached topological
// order, and a composite child's nested context runs to completion as part
// of evaluating that one instance. Signal values persist across steps until
// overwritten, which is what gives stateful blocks their carry-over.
//
// One context exclusively owns its signal table; independent contexts over
// the same immutable block definition may run concurrently.
package exec
