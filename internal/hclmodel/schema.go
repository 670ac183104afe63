package hclmodel

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// modelFile is the top-level structure of a model file: a list of composite
// block definitions.
type modelFile struct {
	Blocks []*blockDef `hcl:"block,block"`
}

// blockDef is one `block` definition.
type blockDef struct {
	Name        string          `hcl:"name,label"`
	Description string          `hcl:"description,optional"`
	Inputs      []*connectorDef `hcl:"input,block"`
	Outputs     []*connectorDef `hcl:"output,block"`
	Instances   []*instanceDef  `hcl:"instance,block"`
	Connects    []*connectDef   `hcl:"connect,block"`
}

// connectorDef is an `input` or `output` block. The type is an expression
// so that bare keywords (real, integer, boolean, string, enumeration) can
// be decoded the same way the engine's type taxonomy names them.
type connectorDef struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Quantity    string         `hcl:"quantity,optional"`
	Unit        string         `hcl:"unit,optional"`
	Min         *cty.Value     `hcl:"min,optional"`
	Max         *cty.Value     `hcl:"max,optional"`
	Nominal     *cty.Value     `hcl:"nominal,optional"`
	Start       *cty.Value     `hcl:"start,optional"`
	Values      []string       `hcl:"values,optional"`
	Description string         `hcl:"description,optional"`
}

// instanceDef is an `instance` block: a child of a composite. Exactly one
// of Type (registered elementary type) or Block (composite defined in the
// same file) must be set.
type instanceDef struct {
	Name   string     `hcl:"name,label"`
	Type   string     `hcl:"type,optional"`
	Block  string     `hcl:"block,optional"`
	Params *cty.Value `hcl:"params,optional"`
}

// connectDef is a `connect` block wiring one output terminal to one input
// terminal; endpoints use dotted instance.connector notation, or the bare
// connector name for the composite's own boundary.
type connectDef struct {
	From        string `hcl:"from"`
	To          string `hcl:"to"`
	Description string `hcl:"description,optional"`
}
