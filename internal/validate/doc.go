// Package validate checks the structural invariants of a block model before
// an execution context is allowed to run: full input coverage, the
// single-assignment rule, connection type compatibility, acyclicity, known
// block types, and bound parameters.
//
// Every problem is collected into a Report rather than returned on first
// failure, so a caller sees the whole picture at once. Validation runs on
// model construction, never per step.
package validate
