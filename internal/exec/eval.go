package exec

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/ctxlog"
	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
)

// evaluateInstance evaluates one child of a composite: propagate the values
// feeding its inputs, then dispatch on its kind.
func (c *Context) evaluateInstance(ctx context.Context, name string) error {
	inst, ok := c.instances[name]
	if !ok {
		return evalError(c.stepCount, name, fmt.Errorf("no runtime state for instance"))
	}

	c.propagateInto(name)

	if inst.nested != nil {
		return c.evaluateComposite(ctx, name, inst)
	}
	return c.evaluateElementary(ctx, name, inst)
}

// propagateInto copies the current source value of every connection
// targeting the named child's inputs. Missing sources are left unbound here;
// input coverage is enforced when the values are gathered.
func (c *Context) propagateInto(name string) {
	for _, conn := range c.block.Connections {
		if conn.To.Instance != name {
			continue
		}
		if v, ok := c.signals[signalKey{conn.From.Instance, conn.From.Connector}]; ok {
			c.signals[signalKey{name, conn.To.Connector}] = v
		}
	}
}

// propagateBoundaryOutputs copies each designated child output to the
// composite's own outputs after all children have evaluated.
func (c *Context) propagateBoundaryOutputs() error {
	for _, conn := range c.block.Connections {
		if !conn.To.Boundary() {
			continue
		}
		v, ok := c.signals[signalKey{conn.From.Instance, conn.From.Connector}]
		if !ok {
			return evalError(c.stepCount, conn.From.Instance,
				fmt.Errorf("output %q feeding composite output %q has no value", conn.From.Connector, conn.To.Connector))
		}
		c.signals[signalKey{"", conn.To.Connector}] = v
	}
	return nil
}

// gatherInputs reads every declared input of a block at the given instance
// key. An unbound or null required input is a fatal runtime error, never an
// implicit default; failing here faults the context instead of letting an
// implementation crash on an unusable value.
func (c *Context) gatherInputs(instance string, b *model.Block) (map[string]cty.Value, error) {
	inputs := make(map[string]cty.Value, len(b.Inputs))
	for _, in := range b.Inputs {
		v, ok := c.signals[signalKey{instance, in.Name}]
		if !ok {
			return nil, fmt.Errorf("required input %q has no bound value", in.Name)
		}
		if v.IsNull() {
			return nil, fmt.Errorf("required input %q is null", in.Name)
		}
		inputs[in.Name] = v
	}
	return inputs, nil
}

// evaluateElementary invokes the registered implementation for one
// elementary instance and writes its outputs back to the signal table.
func (c *Context) evaluateElementary(ctx context.Context, name string, inst *instanceState) error {
	impl, ok := c.reg.Lookup(inst.block.Type)
	if !ok {
		return evalError(c.stepCount, name, fmt.Errorf("no implementation for block type %q", inst.block.Type))
	}

	inputs, err := c.gatherInputs(name, inst.block)
	if err != nil {
		return evalError(c.stepCount, name, err)
	}

	outputNames := make([]string, len(inst.block.Outputs))
	for i, out := range inst.block.Outputs {
		outputNames[i] = out.Name
	}
	call := registry.NewCall(name, inputs, inst.params, inst.implState, outputNames)

	if err := impl.Eval(ctx, call); err != nil {
		// Implementation failures propagate unchanged, with location
		// attached for diagnosis.
		return evalError(c.stepCount, name, err)
	}

	return c.commitOutputs(ctx, name, call)
}

// evaluateSelf evaluates an elementary root block against its own boundary
// connectors.
func (c *Context) evaluateSelf(ctx context.Context) error {
	impl, ok := c.reg.Lookup(c.block.Type)
	if !ok {
		return evalError(c.stepCount, "", fmt.Errorf("no implementation for block type %q", c.block.Type))
	}
	inputs, err := c.gatherInputs("", c.block)
	if err != nil {
		return evalError(c.stepCount, "", err)
	}
	outputNames := make([]string, len(c.block.Outputs))
	for i, out := range c.block.Outputs {
		outputNames[i] = out.Name
	}
	call := registry.NewCall(c.block.Name, inputs, c.selfParams, c.selfState, outputNames)
	if err := impl.Eval(ctx, call); err != nil {
		return evalError(c.stepCount, "", err)
	}
	return c.commitOutputs(ctx, "", call)
}

// commitOutputs moves a call's written outputs into the signal table.
// Unwritten outputs keep whatever value the table already holds, which is
// how stateful blocks carry values across steps; a consumer of a never
// written output fails at its own evaluation. Non-finite numbers are
// rejected here rather than allowed to spread through the model.
func (c *Context) commitOutputs(ctx context.Context, instance string, call *registry.Call) error {
	logger := ctxlog.FromContext(ctx)
	for name, v := range call.Outputs() {
		if err := checkFinite(v); err != nil {
			return evalError(c.stepCount, instance, fmt.Errorf("output %q: %w", name, err))
		}
		c.signals[signalKey{instance, name}] = v
	}
	if missing := call.MissingOutputs(); len(missing) > 0 {
		logger.Debug("Evaluation left outputs unwritten.", "instance", call.Path, "outputs", missing)
	}
	return nil
}

// checkFinite rejects null and infinite values. The engine never
// substitutes a default for them; clamping policy belongs to individual
// implementations.
func checkFinite(v cty.Value) error {
	if v == cty.NilVal || v.IsNull() {
		return fmt.Errorf("value is null")
	}
	if v.Type() == cty.Number {
		if f := v.AsBigFloat(); f.IsInf() {
			return fmt.Errorf("value is not finite")
		}
	}
	return nil
}

// evaluateComposite runs a composite child: copy boundary inputs into the
// nested context, run its cached order exactly once, copy boundary outputs
// back out. The nested context owns its own event scope, so this recursion
// cannot disturb the parent's.
func (c *Context) evaluateComposite(ctx context.Context, name string, inst *instanceState) error {
	nested := inst.nested

	inputs, err := c.gatherInputs(name, inst.block)
	if err != nil {
		return evalError(c.stepCount, name, err)
	}
	for in, v := range inputs {
		nested.signals[signalKey{"", in}] = v
	}

	if err := nested.runStep(ctx); err != nil {
		// The nested context is now faulted; mirror the failure upward
		// with this instance's name attached.
		return evalError(c.stepCount, name, err)
	}

	for _, out := range inst.block.Outputs {
		if v, ok := nested.signals[signalKey{"", out.Name}]; ok {
			c.signals[signalKey{name, out.Name}] = v
		}
	}
	return nil
}
