package model

import "github.com/zclconf/go-cty/cty"

// Parameter is a named, typed value that stays constant for the lifetime of
// a block instance. Value holds the block definition's default, or the
// instantiation-time override once one has been applied; cty.NilVal means
// the parameter is still unbound.
type Parameter struct {
	Name  string
	Type  Type
	Value cty.Value

	Quantity string
	Unit     string

	Min cty.Value
	Max cty.Value

	Description string
}

// Bound reports whether the parameter carries a concrete value.
func (p Parameter) Bound() bool {
	return p.Value != cty.NilVal && !p.Value.IsNull()
}

// WithValue returns a copy of p bound to v.
func (p Parameter) WithValue(v cty.Value) Parameter {
	p.Value = v
	return p
}

// InBounds reports whether the bound value lies within the declared min/max
// bounds. Unbound parameters and parameters without bounds pass.
func (p Parameter) InBounds() bool {
	if !p.Bound() || p.Value.Type() != cty.Number {
		return true
	}
	if p.Min != cty.NilVal && p.Value.LessThan(p.Min).True() {
		return false
	}
	if p.Max != cty.NilVal && p.Value.GreaterThan(p.Max).True() {
		return false
	}
	return true
}
