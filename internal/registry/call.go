package registry

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Call carries one elementary evaluation: the instance's current input
// values, its bound parameters, a per-instance state bag that persists
// across steps, and the outputs the implementation writes.
//
// The engine constructs a fresh Call per evaluation; only the state bag is
// shared across steps (and captured by snapshots).
type Call struct {
	// Path is the qualified instance path, for diagnostics.
	Path string

	inputs  map[string]cty.Value
	params  map[string]cty.Value
	state   map[string]cty.Value
	outputs map[string]cty.Value
	outDecl map[string]bool
}

// NewCall assembles a call. The state map is retained by reference so that
// mutations persist on the owning instance; inputs and params are read-only
// views.
func NewCall(path string, inputs, params, state map[string]cty.Value, outputNames []string) *Call {
	decl := make(map[string]bool, len(outputNames))
	for _, n := range outputNames {
		decl[n] = true
	}
	return &Call{
		Path:    path,
		inputs:  inputs,
		params:  params,
		state:   state,
		outputs: make(map[string]cty.Value, len(outputNames)),
		outDecl: decl,
	}
}

// Input returns the current value of a declared input. The engine checks
// input coverage before invoking an implementation, so a miss here means
// the implementation asked for a connector its definition does not declare.
func (c *Call) Input(name string) (cty.Value, error) {
	v, ok := c.inputs[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("%s: no value bound for input %q", c.Path, name)
	}
	return v, nil
}

// Param returns a bound parameter value.
func (c *Call) Param(name string) (cty.Value, error) {
	v, ok := c.params[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("%s: no value bound for parameter %q", c.Path, name)
	}
	return v, nil
}

// SetOutput records an output value. Writing to an undeclared output is an
// error; writing the same output twice within one evaluation is a
// single-assignment violation.
func (c *Call) SetOutput(name string, v cty.Value) error {
	if !c.outDecl[name] {
		return fmt.Errorf("%s: block declares no output %q", c.Path, name)
	}
	if _, dup := c.outputs[name]; dup {
		return fmt.Errorf("%s: output %q written twice in one evaluation", c.Path, name)
	}
	c.outputs[name] = v
	return nil
}

// State returns the instance's mutable state bag. Implementations that keep
// carry-over state (accumulators, hysteresis memory) store it here so the
// engine can snapshot and restore it.
func (c *Call) State() map[string]cty.Value {
	return c.state
}

// Outputs returns the values written so far, keyed by connector name.
func (c *Call) Outputs() map[string]cty.Value {
	return c.outputs
}

// MissingOutputs lists declared outputs the implementation did not write,
// sorted for stable error messages.
func (c *Call) MissingOutputs() []string {
	var missing []string
	for name := range c.outDecl {
		if _, ok := c.outputs[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
