// Package std is the standard library of elementary blocks: arithmetic,
// limiting, logic, and a few stateful sequences. Every block is registered
// through the ordinary registry path; the engine gives them no special
// treatment.
package std

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
)

// Module implements registry.Module for the standard library.
type Module struct{}

// Register registers every standard block type.
func (Module) Register(r *registry.Registry) {
	r.Register(constantBlock())
	r.Register(gainBlock())
	r.Register(addBlock())
	r.Register(subtractBlock())
	r.Register(limiterBlock())
	r.Register(minBlock())
	r.Register(maxBlock())
	r.Register(switchBlock())
	r.Register(greaterBlock())
	r.Register(hysteresisBlock())
	r.Register(accumulatorBlock())
	r.Register(notBlock())
	r.Register(andBlock())
	r.Register(orBlock())
}

func realIn(name string) model.Connector {
	return model.Connector{Name: name, Type: model.Real, Causality: model.Input}
}

func realOut(name string) model.Connector {
	return model.Connector{Name: name, Type: model.Real, Causality: model.Output}
}

func boolIn(name string) model.Connector {
	return model.Connector{Name: name, Type: model.Boolean, Causality: model.Input}
}

func boolOut(name string) model.Connector {
	return model.Connector{Name: name, Type: model.Boolean, Causality: model.Output}
}

func realParam(name string, def float64) model.Parameter {
	return model.Parameter{Name: name, Type: model.Real, Value: cty.NumberFloatVal(def)}
}

// Constant emits its parameter k on every step.
func constantBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Constant",
			Description: "Output a constant value",
			Outputs:     []model.Connector{realOut("y")},
			Parameters:  []model.Parameter{realParam("k", 0)},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			k, err := call.Param("k")
			if err != nil {
				return err
			}
			return call.SetOutput("y", k)
		},
	}
}

// Gain computes y = k * u.
func gainBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Gain",
			Description: "Scale the input by a constant gain",
			Inputs:      []model.Connector{realIn("u")},
			Outputs:     []model.Connector{realOut("y")},
			Parameters:  []model.Parameter{realParam("k", 1)},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u, err := call.Input("u")
			if err != nil {
				return err
			}
			k, err := call.Param("k")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u.Multiply(k))
		},
	}
}

// Add computes y = k1*u1 + k2*u2.
func addBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Add",
			Description: "Weighted sum of two inputs",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2")},
			Outputs:     []model.Connector{realOut("y")},
			Parameters:  []model.Parameter{realParam("k1", 1), realParam("k2", 1)},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			k1, _ := call.Param("k1")
			k2, _ := call.Param("k2")
			return call.SetOutput("y", u1.Multiply(k1).Add(u2.Multiply(k2)))
		},
	}
}

// Subtract computes y = u1 - u2.
func subtractBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Subtract",
			Description: "Difference of two inputs",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2")},
			Outputs:     []model.Connector{realOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u1.Subtract(u2))
		},
	}
}

// Limiter clamps u into [uMin, uMax].
func limiterBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Limiter",
			Description: "Clamp the input between two bounds",
			Inputs:      []model.Connector{realIn("u")},
			Outputs:     []model.Connector{realOut("y")},
			Parameters:  []model.Parameter{realParam("uMin", 0), realParam("uMax", 1)},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u, err := call.Input("u")
			if err != nil {
				return err
			}
			lo, _ := call.Param("uMin")
			hi, _ := call.Param("uMax")
			y := u
			if y.LessThan(lo).True() {
				y = lo
			}
			if y.GreaterThan(hi).True() {
				y = hi
			}
			return call.SetOutput("y", y)
		},
	}
}

// Min computes y = min(u1, u2).
func minBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Min",
			Description: "Smaller of two inputs",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2")},
			Outputs:     []model.Connector{realOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			y := u1
			if u2.LessThan(u1).True() {
				y = u2
			}
			return call.SetOutput("y", y)
		},
	}
}

// Max computes y = max(u1, u2).
func maxBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Max",
			Description: "Larger of two inputs",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2")},
			Outputs:     []model.Connector{realOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			y := u1
			if u2.GreaterThan(u1).True() {
				y = u2
			}
			return call.SetOutput("y", y)
		},
	}
}

// Switch passes u1 while active is true, u2 otherwise.
func switchBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Switch",
			Description: "Select between two inputs on a boolean condition",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2"), boolIn("active")},
			Outputs:     []model.Connector{realOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			active, err := call.Input("active")
			if err != nil {
				return err
			}
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			if active.True() {
				return call.SetOutput("y", u1)
			}
			return call.SetOutput("y", u2)
		},
	}
}

// Greater compares two inputs: y = u1 > u2.
func greaterBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Greater",
			Description: "True while the first input exceeds the second",
			Inputs:      []model.Connector{realIn("u1"), realIn("u2")},
			Outputs:     []model.Connector{boolOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u1.GreaterThan(u2))
		},
	}
}

// Hysteresis switches on above uHigh and off below uLow, holding its last
// output in between. The held output lives in the instance state bag so it
// survives snapshots.
func hysteresisBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Hysteresis",
			Description: "Two-threshold on/off with memory",
			Inputs:      []model.Connector{realIn("u")},
			Outputs:     []model.Connector{boolOut("y")},
			Parameters:  []model.Parameter{realParam("uLow", 0), realParam("uHigh", 1)},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u, err := call.Input("u")
			if err != nil {
				return err
			}
			lo, _ := call.Param("uLow")
			hi, _ := call.Param("uHigh")

			state := call.State()
			active, ok := state["active"]
			if !ok {
				active = cty.False
			}
			switch {
			case u.GreaterThan(hi).True():
				active = cty.True
			case u.LessThan(lo).True():
				active = cty.False
			}
			state["active"] = active
			return call.SetOutput("y", active)
		},
	}
}

// Accumulator sums its input across steps: y(n) = y(n-1) + u.
func accumulatorBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Accumulator",
			Description: "Running sum of the input over steps",
			Inputs:      []model.Connector{realIn("u")},
			Outputs:     []model.Connector{realOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u, err := call.Input("u")
			if err != nil {
				return err
			}
			state := call.State()
			sum, ok := state["sum"]
			if !ok {
				sum = cty.Zero
			}
			sum = sum.Add(u)
			state["sum"] = sum
			return call.SetOutput("y", sum)
		},
	}
}

// Not negates a boolean input.
func notBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Not",
			Description: "Boolean negation",
			Inputs:      []model.Connector{boolIn("u")},
			Outputs:     []model.Connector{boolOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u, err := call.Input("u")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u.Not())
		},
	}
}

// And is boolean conjunction of two inputs.
func andBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "And",
			Description: "Boolean conjunction",
			Inputs:      []model.Connector{boolIn("u1"), boolIn("u2")},
			Outputs:     []model.Connector{boolOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u1.And(u2))
		},
	}
}

// Or is boolean disjunction of two inputs.
func orBlock() *registry.Registered {
	return &registry.Registered{
		Def: &registry.Definition{
			Type:        "Or",
			Description: "Boolean disjunction",
			Inputs:      []model.Connector{boolIn("u1"), boolIn("u2")},
			Outputs:     []model.Connector{boolOut("y")},
		},
		Eval: func(ctx context.Context, call *registry.Call) error {
			u1, err := call.Input("u1")
			if err != nil {
				return err
			}
			u2, err := call.Input("u2")
			if err != nil {
				return err
			}
			return call.SetOutput("y", u1.Or(u2))
		},
	}
}
