package model

import "strings"

// Kind discriminates between elementary and composite blocks.
type Kind string

const (
	// Elementary blocks delegate their behavior to a registered
	// implementation looked up by the block's Type identifier.
	Elementary Kind = "elementary"
	// Composite blocks are defined by a sub-graph of child instances and
	// internal connections.
	Composite Kind = "composite"
)

// Block is the immutable definition of one computational unit. For a
// composite, Children holds the child instances in declaration order (the
// scheduler's tie-break order) and Connections the wiring scoped to this
// block.
//
// Blocks must not be mutated after construction; the execution engine shares
// one definition across any number of contexts.
type Block struct {
	// Name is the instance name. For the root block of a model it doubles
	// as the model name.
	Name string
	// Type identifies the block type. For elementary blocks it is the
	// registry key of the implementation.
	Type string
	Kind Kind

	Parameters []Parameter
	Inputs     []Connector
	Outputs    []Connector

	// Children and Connections are populated for composites only.
	Children    []*Block
	Connections []Connection

	Description string
}

// IsComposite reports whether the block is a composite.
func (b *Block) IsComposite() bool {
	return b.Kind == Composite
}

// Input returns the input connector with the given name, or false.
func (b *Block) Input(name string) (Connector, bool) {
	for _, c := range b.Inputs {
		if c.Name == name {
			return c, true
		}
	}
	return Connector{}, false
}

// Output returns the output connector with the given name, or false.
func (b *Block) Output(name string) (Connector, bool) {
	for _, c := range b.Outputs {
		if c.Name == name {
			return c, true
		}
	}
	return Connector{}, false
}

// Parameter returns the parameter with the given name, or false.
func (b *Block) Parameter(name string) (Parameter, bool) {
	for _, p := range b.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Child returns the child instance with the given name, or false.
func (b *Block) Child(name string) (*Block, bool) {
	for _, c := range b.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// JoinPath qualifies a child instance name with its parent's path. Paths are
// dotted, e.g. "ahu.coil.gain"; the root of a model is the empty path.
func JoinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// SplitPath splits a dotted instance path into its segments. The empty path
// yields nil.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
