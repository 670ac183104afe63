package model

import "github.com/zclconf/go-cty/cty"

// Type is the data type of a connector or parameter value.
type Type string

const (
	Real        Type = "Real"
	Integer     Type = "Integer"
	Boolean     Type = "Boolean"
	String      Type = "String"
	Enumeration Type = "Enumeration"
)

// Valid reports whether t is one of the defined types.
func (t Type) Valid() bool {
	switch t {
	case Real, Integer, Boolean, String, Enumeration:
		return true
	}
	return false
}

// CtyType returns the cty representation used for runtime values of t.
// Real and Integer both map to cty.Number; the distinction between them is
// kept at the model level for connection compatibility checks.
func (t Type) CtyType() cty.Type {
	switch t {
	case Real, Integer:
		return cty.Number
	case Boolean:
		return cty.Bool
	case String, Enumeration:
		return cty.String
	default:
		return cty.NilType
	}
}

// CompatibleWith reports whether a value of type t may feed a connector of
// type to. Identical types are always compatible; the only allowed widening
// is Integer into Real. There is no silent coercion anywhere else.
func (t Type) CompatibleWith(to Type) bool {
	if t == to {
		return true
	}
	return t == Integer && to == Real
}
