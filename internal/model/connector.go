package model

import "github.com/zclconf/go-cty/cty"

// Causality marks a connector as an input or an output terminal.
type Causality string

const (
	Input  Causality = "input"
	Output Causality = "output"
)

// Connector is a typed terminal on a block. The unit and bound fields are
// metadata for validation and documentation; they never influence control
// flow.
type Connector struct {
	Name      string
	Type      Type
	Causality Causality

	// Quantity and Unit describe the physical meaning of the signal, e.g.
	// "Temperature" in "K".
	Quantity string
	Unit     string

	// Min, Max, Nominal, and Start are cty.NilVal when undeclared. Start is
	// seeded into the signal table when a context initializes.
	Min     cty.Value
	Max     cty.Value
	Nominal cty.Value
	Start   cty.Value

	// AllowedValues constrains Enumeration connectors.
	AllowedValues []string

	Description string
}

// HasStart reports whether the connector declares a start value.
func (c Connector) HasStart() bool {
	return c.Start != cty.NilVal
}

// InBounds reports whether v lies within the declared min/max bounds.
// Connectors without bounds accept every value.
func (c Connector) InBounds(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() || v.Type() != cty.Number {
		return true
	}
	if c.Min != cty.NilVal && v.LessThan(c.Min).True() {
		return false
	}
	if c.Max != cty.NilVal && v.GreaterThan(c.Max).True() {
		return false
	}
	return true
}
