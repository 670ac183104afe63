package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/model"
)

// Module is the interface block libraries implement to register their types.
type Module interface {
	Register(r *Registry)
}

// EvalFunc computes one elementary instance's outputs from its inputs. It
// reads inputs and parameters from the call and writes every declared
// output; returning an error aborts the enclosing step.
type EvalFunc func(ctx context.Context, call *Call) error

// Definition describes an elementary block type: its connectors and the
// defaults of its parameters. Instances are stamped from it.
type Definition struct {
	Type        string
	Description string
	Inputs      []model.Connector
	Outputs     []model.Connector
	Parameters  []model.Parameter
}

// Registered pairs a definition with its implementation.
type Registered struct {
	Def  *Definition
	Eval EvalFunc
}

// Registry maps block type identifiers to registered implementations for a
// single engine instance.
type Registry struct {
	impls map[string]*Registered
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{impls: make(map[string]*Registered)}
}

// Register adds an implementation. Registering the same type twice is a
// programming error and panics, matching the fail-loud contract for module
// wiring at startup.
func (r *Registry) Register(reg *Registered) {
	if reg == nil || reg.Def == nil || reg.Def.Type == "" {
		panic("registry: Register requires a definition with a type identifier")
	}
	if reg.Eval == nil {
		panic(fmt.Sprintf("registry: type %q registered without an eval function", reg.Def.Type))
	}
	if _, exists := r.impls[reg.Def.Type]; exists {
		panic(fmt.Sprintf("registry: type %q already registered", reg.Def.Type))
	}
	slog.Debug("Registering block implementation.", "type", reg.Def.Type)
	r.impls[reg.Def.Type] = reg
}

// Lookup returns the registered implementation for a type identifier.
func (r *Registry) Lookup(typeID string) (*Registered, bool) {
	reg, ok := r.impls[typeID]
	return reg, ok
}

// Types returns all registered type identifiers, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.impls))
	for t := range r.impls {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Instantiate stamps a new elementary block instance from a registered
// definition, applying parameter overrides. Overriding an undeclared
// parameter is an error; declared parameters keep their defaults unless
// overridden.
func (r *Registry) Instantiate(typeID, name string, overrides map[string]cty.Value) (*model.Block, error) {
	reg, ok := r.impls[typeID]
	if !ok {
		return nil, fmt.Errorf("instantiate %q: unknown block type %q", name, typeID)
	}
	def := reg.Def

	params := make([]model.Parameter, len(def.Parameters))
	copy(params, def.Parameters)
	seen := make(map[string]bool, len(params))
	for i := range params {
		seen[params[i].Name] = true
		if v, ok := overrides[params[i].Name]; ok {
			params[i] = params[i].WithValue(v)
		}
	}
	for pname := range overrides {
		if !seen[pname] {
			return nil, fmt.Errorf("instantiate %q: block type %q has no parameter %q", name, typeID, pname)
		}
	}

	inputs := make([]model.Connector, len(def.Inputs))
	copy(inputs, def.Inputs)
	outputs := make([]model.Connector, len(def.Outputs))
	copy(outputs, def.Outputs)

	return &model.Block{
		Name:       name,
		Type:       typeID,
		Kind:       model.Elementary,
		Parameters: params,
		Inputs:     inputs,
		Outputs:    outputs,
	}, nil
}
