package exec

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/blockflow/internal/ctxlog"
	"github.com/vk/blockflow/internal/graph"
	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
	"github.com/vk/blockflow/internal/scheduler"
	"github.com/vk/blockflow/internal/validate"
)

// State is the lifecycle state of an execution context.
type State int

const (
	// Unvalidated: constructed but not yet initialized.
	Unvalidated State = iota
	// Initialized: validated, order cached, parameters bound, start
	// values seeded; no step has completed yet.
	Initialized
	// Stepping: at least one step has completed.
	Stepping
	// Faulted: a runtime error aborted a step; no further stepping until
	// Reset.
	Faulted
)

func (s State) String() string {
	switch s {
	case Unvalidated:
		return "unvalidated"
	case Initialized:
		return "initialized"
	case Stepping:
		return "stepping"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// signalKey addresses one signal: the value bound to one connector of one
// instance. The empty instance name is the context's own boundary.
type signalKey struct {
	instance  string
	connector string
}

// instanceState is the runtime state the context owns per child instance:
// bound parameters, the implementation's state bag for elementary children,
// or the nested context for composite children. The nested context lives
// exactly as long as this struct.
type instanceState struct {
	block  *model.Block
	params map[string]cty.Value

	// implState is the mutable state bag handed to elementary
	// implementations; nil for composites.
	implState map[string]cty.Value
	// nested is the child's own execution context; nil for elementaries.
	nested *Context
}

// Context owns the signal table and lifecycle of one model instantiation.
// It is not safe for concurrent use; independent contexts are.
type Context struct {
	block *model.Block
	reg   *registry.Registry

	state      State
	stepCount  uint64
	eventDepth int
	faultErr   error

	signals   map[signalKey]cty.Value
	order     []string
	instances map[string]*instanceState

	// selfState backs an elementary root block's implementation state.
	selfState map[string]cty.Value
	// selfParams holds an elementary root block's bound parameters.
	selfParams map[string]cty.Value
}

// New constructs a context for a block over an implementation registry. No
// validation or I/O happens here; call Initialize before stepping.
func New(b *model.Block, reg *registry.Registry) *Context {
	return &Context{
		block:   b,
		reg:     reg,
		signals: make(map[signalKey]cty.Value),
	}
}

// Block returns the immutable block definition this context runs.
func (c *Context) Block() *model.Block { return c.block }

// State returns the current lifecycle state.
func (c *Context) State() State { return c.state }

// StepCount returns the number of completed steps.
func (c *Context) StepCount() uint64 { return c.stepCount }

// Err returns the runtime error that faulted the context, or nil.
func (c *Context) Err() error { return c.faultErr }

// Initialize validates the model, builds and caches the dependency order,
// binds parameters, and seeds declared start values. On a validation
// failure it returns a *ValidationError and the context stays Unvalidated.
func (c *Context) Initialize(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	report := validate.Block(c.block, c.reg)
	if !report.OK() {
		logger.Error("Model validation failed.", "block", c.block.Name, "errors", len(report.Errors()))
		return &ValidationError{Report: report}
	}
	for _, issue := range report.Issues {
		logger.Warn("Model validation warning.", "issue", issue.String())
	}

	if err := c.build(ctx); err != nil {
		return err
	}
	c.seed()
	c.state = Initialized
	logger.Debug("Context initialized.", "block", c.block.Name, "order", c.order)
	return nil
}

// build caches the evaluation order and constructs per-instance runtime
// state, recursing into composite children. The model is already validated.
func (c *Context) build(ctx context.Context) error {
	if !c.block.IsComposite() {
		impl, ok := c.reg.Lookup(c.block.Type)
		if !ok {
			return fmt.Errorf("block type %q vanished from registry after validation", c.block.Type)
		}
		c.selfState = make(map[string]cty.Value)
		c.selfParams = bindParameters(c.block, impl.Def)
		return nil
	}

	order, err := scheduler.Order(graph.FromComposite(c.block))
	if err != nil {
		// Validation already ran the same detector, so this is
		// unreachable for a validated model.
		return err
	}
	c.order = order

	c.instances = make(map[string]*instanceState, len(c.block.Children))
	for _, child := range c.block.Children {
		inst := &instanceState{block: child}
		if child.IsComposite() {
			inst.nested = New(child, c.reg)
			if err := inst.nested.build(ctx); err != nil {
				return err
			}
			inst.nested.seed()
			inst.nested.state = Initialized
		} else {
			impl, ok := c.reg.Lookup(child.Type)
			if !ok {
				return fmt.Errorf("block type %q vanished from registry after validation", child.Type)
			}
			inst.implState = make(map[string]cty.Value)
			inst.params = bindParameters(child, impl.Def)
		}
		c.instances[child.Name] = inst
	}
	return nil
}

// bindParameters merges definition defaults with the instance's bound
// values. Validation has already guaranteed every parameter is bound.
func bindParameters(b *model.Block, def *registry.Definition) map[string]cty.Value {
	params := make(map[string]cty.Value)
	if def != nil {
		for _, p := range def.Parameters {
			if p.Bound() {
				params[p.Name] = p.Value
			}
		}
	}
	for _, p := range b.Parameters {
		if p.Bound() {
			params[p.Name] = p.Value
		}
	}
	return params
}

// seed writes declared start values into the signal table: the boundary
// connectors of this context's block and the connectors of every child.
// Nested contexts seed their own interior.
func (c *Context) seed() {
	for _, conns := range [][]model.Connector{c.block.Inputs, c.block.Outputs} {
		for _, conn := range conns {
			if conn.HasStart() {
				c.signals[signalKey{"", conn.Name}] = conn.Start
			}
		}
	}
	for _, child := range c.block.Children {
		for _, conns := range [][]model.Connector{child.Inputs, child.Outputs} {
			for _, conn := range conns {
				if conn.HasStart() {
					c.signals[signalKey{child.Name, conn.Name}] = conn.Start
				}
			}
		}
	}
}

// SetInput binds an external value to one of the root block's input
// connectors. The value must convert to the connector's type and be
// non-null and finite; Integer inputs require an integral value and
// enumeration inputs one of the allowed values. No clamping is ever
// applied.
func (c *Context) SetInput(name string, v cty.Value) error {
	if c.state == Unvalidated {
		return ErrNotInitialized
	}
	conn, ok := c.block.Input(name)
	if !ok {
		return fmt.Errorf("block %q has no input %q", c.block.Name, name)
	}
	converted, err := convert.Convert(v, conn.Type.CtyType())
	if err != nil {
		return fmt.Errorf("input %q expects %s: %w", name, conn.Type, err)
	}
	// The same finiteness rule commitOutputs applies to block outputs
	// holds at the external boundary: a null or infinite value must never
	// enter the signal table.
	if err := checkFinite(converted); err != nil {
		return fmt.Errorf("input %q: %w", name, err)
	}
	if conn.Type == model.Integer && !converted.AsBigFloat().IsInt() {
		return fmt.Errorf("input %q expects %s: value %s is not integral",
			name, conn.Type, converted.AsBigFloat().Text('g', -1))
	}
	if conn.Type == model.Enumeration && len(conn.AllowedValues) > 0 {
		allowed := false
		for _, av := range conn.AllowedValues {
			if converted.AsString() == av {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("input %q: value %q not in allowed enumeration values %v",
				name, converted.AsString(), conn.AllowedValues)
		}
	}
	c.signals[signalKey{"", name}] = converted
	return nil
}

// GetOutput reads the current value of one of the root block's output
// connectors. Reading an output no step has produced yet is an error, not
// an implicit default.
func (c *Context) GetOutput(name string) (cty.Value, error) {
	if c.state == Unvalidated {
		return cty.NilVal, ErrNotInitialized
	}
	if _, ok := c.block.Output(name); !ok {
		return cty.NilVal, fmt.Errorf("block %q has no output %q", c.block.Name, name)
	}
	v, ok := c.signals[signalKey{"", name}]
	if !ok {
		return cty.NilVal, fmt.Errorf("output %q has no value yet", name)
	}
	return v, nil
}

// Signal probes the current value at (instance path, connector) anywhere in
// the model, descending through nested contexts. The empty path addresses
// the root boundary. Intended for diagnostics and tests.
func (c *Context) Signal(path, connector string) (cty.Value, bool) {
	segs := model.SplitPath(path)
	if len(segs) == 0 {
		v, ok := c.signals[signalKey{"", connector}]
		return v, ok
	}
	if len(segs) == 1 {
		v, ok := c.signals[signalKey{segs[0], connector}]
		return v, ok
	}
	inst, ok := c.instances[segs[0]]
	if !ok || inst.nested == nil {
		return cty.NilVal, false
	}
	rest := path[len(segs[0])+1:]
	return inst.nested.Signal(rest, connector)
}

// Step runs one synchronous evaluation of the whole model in the cached
// topological order. On success the step counter advances; on a runtime
// error the context faults, partial writes stay visible for diagnosis, and
// the counter does not advance.
func (c *Context) Step(ctx context.Context) error {
	switch c.state {
	case Unvalidated:
		return ErrNotInitialized
	case Faulted:
		return fmt.Errorf("%w: %v", ErrFaulted, c.faultErr)
	}
	if c.eventDepth != 0 {
		return ErrStepInProgress
	}
	return c.runStep(ctx)
}

// runStep is the shared step body, also used for a composite child's nested
// run. The event scope counter is owned by this context alone, so a nested
// composite evaluation can never corrupt an ancestor's scope.
func (c *Context) runStep(ctx context.Context) error {
	c.eventDepth++
	defer func() { c.eventDepth-- }()

	logger := ctxlog.FromContext(ctx)

	if !c.block.IsComposite() {
		if err := c.evaluateSelf(ctx); err != nil {
			c.fault(err)
			return err
		}
	} else {
		for _, name := range c.order {
			if err := c.evaluateInstance(ctx, name); err != nil {
				c.fault(err)
				return err
			}
		}
		if err := c.propagateBoundaryOutputs(); err != nil {
			c.fault(err)
			return err
		}
	}

	c.stepCount++
	c.state = Stepping
	logger.Debug("Step completed.", "block", c.block.Name, "step", c.stepCount)
	return nil
}

func (c *Context) fault(err error) {
	c.state = Faulted
	c.faultErr = err
}

// Reset returns an initialized or faulted context to its post-Initialize
// state: signal table cleared and reseeded, implementation state dropped,
// step counter zeroed. Parameters and the cached order are untouched, being
// pure functions of the immutable model.
func (c *Context) Reset() error {
	if c.state == Unvalidated {
		return ErrNotInitialized
	}
	c.signals = make(map[signalKey]cty.Value)
	if c.selfState != nil {
		c.selfState = make(map[string]cty.Value)
	}
	for _, inst := range c.instances {
		if inst.nested != nil {
			if err := inst.nested.Reset(); err != nil {
				return err
			}
		} else {
			inst.implState = make(map[string]cty.Value)
		}
	}
	c.seed()
	c.stepCount = 0
	c.faultErr = nil
	c.state = Initialized
	return nil
}
