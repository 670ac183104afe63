// Package graph provides the directed dependency graph underlying block
// scheduling. Nodes are child instance names of one composite block; an edge
// a -> b means b consumes one of a's outputs and must evaluate after it.
//
// The graph is built once per composite, is a pure function of the block
// definition, and is read-only after construction.
package graph
