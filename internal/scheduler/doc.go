// Package scheduler computes the sequential evaluation order of a
// dependency graph. Its primary role is to turn the graph of one composite
// block into a deterministic topological order, or to report the algebraic
// loop that makes ordering impossible.
package scheduler
