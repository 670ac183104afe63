package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
)

func in(name string, t model.Type) model.Connector {
	return model.Connector{Name: name, Type: t, Causality: model.Input}
}

func out(name string, t model.Type) model.Connector {
	return model.Connector{Name: name, Type: t, Causality: model.Output}
}

func noop(ctx context.Context, call *registry.Call) error { return nil }

// testRegistry registers the few block types the fixtures need: a real
// gain, a boolean source, and an integer source.
func testRegistry() *registry.Registry {
	r := registry.New()
	r.Register(&registry.Registered{
		Def: &registry.Definition{
			Type:    "Gain",
			Inputs:  []model.Connector{in("u", model.Real)},
			Outputs: []model.Connector{out("y", model.Real)},
			Parameters: []model.Parameter{
				{Name: "k", Type: model.Real, Value: cty.NumberFloatVal(1)},
			},
		},
		Eval: noop,
	})
	r.Register(&registry.Registered{
		Def: &registry.Definition{
			Type:    "Flag",
			Outputs: []model.Connector{out("y", model.Boolean)},
		},
		Eval: noop,
	})
	r.Register(&registry.Registered{
		Def: &registry.Definition{
			Type:    "Count",
			Outputs: []model.Connector{out("y", model.Integer)},
		},
		Eval: noop,
	})
	return r
}

func gainChild(t *testing.T, r *registry.Registry, name string) *model.Block {
	t.Helper()
	b, err := r.Instantiate("Gain", name, nil)
	require.NoError(t, err)
	return b
}

func child(t *testing.T, r *registry.Registry, typeID, name string) *model.Block {
	t.Helper()
	b, err := r.Instantiate(typeID, name, nil)
	require.NoError(t, err)
	return b
}

// plant is the canonical valid fixture: u -> g.u, g.y -> y.
func plant(t *testing.T, r *registry.Registry) *model.Block {
	t.Helper()
	return &model.Block{
		Name:    "plant",
		Type:    "plant",
		Kind:    model.Composite,
		Inputs:  []model.Connector{in("u", model.Real)},
		Outputs: []model.Connector{out("y", model.Real)},
		Children: []*model.Block{
			gainChild(t, r, "g"),
		},
		Connections: []model.Connection{
			{From: model.Endpoint{Connector: "u"}, To: model.Endpoint{Instance: "g", Connector: "u"}},
			{From: model.Endpoint{Instance: "g", Connector: "y"}, To: model.Endpoint{Connector: "y"}},
		},
	}
}

func TestBlock_ValidModel(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	report := Block(plant(t, r), r)

	assert.True(t, report.OK())
	assert.Empty(t, report.Issues)
}

func TestBlock_UnconnectedInput(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	// Drop the connection feeding g.u; the boundary output source stays.
	b.Connections = b.Connections[1:]

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleUnconnectedInput)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "g", issues[0].Path)
	assert.Contains(t, issues[0].Message, `"u"`)
}

func TestBlock_MultipleSources(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children = append(b.Children, child(t, r, "Count", "c"))
	b.Connections = append(b.Connections, model.Connection{
		From: model.Endpoint{Instance: "c", Connector: "y"},
		To:   model.Endpoint{Instance: "g", Connector: "u"},
	})

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleMultipleSources)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "exactly one")
}

func TestBlock_UnconnectedBoundaryOutput(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Connections = b.Connections[:1]

	report := Block(b, r)

	require.False(t, report.OK())
	require.Len(t, report.ByRule(RuleUnconnectedOutput), 1)
}

func TestBlock_TypeMismatch(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children = append(b.Children, child(t, r, "Flag", "f"))
	// Replace the boundary feed of g.u with a boolean source.
	b.Connections[0] = model.Connection{
		From: model.Endpoint{Instance: "f", Connector: "y"},
		To:   model.Endpoint{Instance: "g", Connector: "u"},
	}

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleTypeMismatch)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "Boolean")
	assert.Contains(t, issues[0].Message, "Real")
}

func TestBlock_IntegerWidensIntoReal(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children = append(b.Children, child(t, r, "Count", "c"))
	b.Connections[0] = model.Connection{
		From: model.Endpoint{Instance: "c", Connector: "y"},
		To:   model.Endpoint{Instance: "g", Connector: "u"},
	}

	report := Block(b, r)

	assert.True(t, report.OK(), "integer into real is the one allowed widening: %s", report.Summary())
}

func TestBlock_AlgebraicLoop(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := &model.Block{
		Name:    "loop",
		Type:    "loop",
		Kind:    model.Composite,
		Outputs: []model.Connector{out("y", model.Real)},
		Children: []*model.Block{
			gainChild(t, r, "a"),
			gainChild(t, r, "b"),
		},
		Connections: []model.Connection{
			{From: model.Endpoint{Instance: "a", Connector: "y"}, To: model.Endpoint{Instance: "b", Connector: "u"}},
			{From: model.Endpoint{Instance: "b", Connector: "y"}, To: model.Endpoint{Instance: "a", Connector: "u"}},
			{From: model.Endpoint{Instance: "b", Connector: "y"}, To: model.Endpoint{Connector: "y"}},
		},
	}

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleAlgebraicLoop)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "algebraic loop")
	assert.Contains(t, issues[0].Message, " -> ")
}

func TestBlock_DanglingReference(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Connections = append(b.Connections, model.Connection{
		From: model.Endpoint{Instance: "ghost", Connector: "y"},
		To:   model.Endpoint{Instance: "g", Connector: "u"},
	})

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleDanglingReference)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Message, `"ghost"`)
}

func TestBlock_BoundaryPassthroughRejected(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Connections = append(b.Connections, model.Connection{
		From: model.Endpoint{Connector: "u"},
		To:   model.Endpoint{Connector: "y"},
	})

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleDanglingReference)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "passthrough")
}

func TestBlock_UnknownChildType(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children[0].Type = "Warp"

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleUnknownType)
	require.Len(t, issues, 1)
	assert.Equal(t, "g", issues[0].Path)
}

func TestBlock_ImplMismatch(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children[0].Inputs = append(b.Children[0].Inputs, in("extra", model.Real))

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleImplMismatch)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, `"extra"`)
}

func TestBlock_UnboundParameter(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Children[0].Parameters = []model.Parameter{{Name: "k", Type: model.Real}}

	report := Block(b, r)

	require.False(t, report.OK())
	require.Len(t, report.ByRule(RuleUnboundParameter), 1)
}

func TestBlock_DefinitionParameterRequiresInstanceValue(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	r.Register(&registry.Registered{
		Def: &registry.Definition{
			Type:    "Bias",
			Inputs:  []model.Connector{in("u", model.Real)},
			Outputs: []model.Connector{out("y", model.Real)},
			Parameters: []model.Parameter{
				{Name: "b", Type: model.Real}, // no default
			},
		},
		Eval: noop,
	})

	b := plant(t, r)
	// Hand-built instance that never lists the definition's parameter.
	b.Children[0] = &model.Block{
		Name:    "g",
		Type:    "Bias",
		Kind:    model.Elementary,
		Inputs:  []model.Connector{in("u", model.Real)},
		Outputs: []model.Connector{out("y", model.Real)},
	}

	report := Block(b, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleUnboundParameter)
	require.Len(t, issues, 1)
	assert.Equal(t, "g", issues[0].Path)
	assert.Contains(t, issues[0].Message, `"b"`)

	// Binding the parameter on the instance resolves it.
	b.Children[0].Parameters = []model.Parameter{
		{Name: "b", Type: model.Real, Value: cty.NumberFloatVal(1)},
	}
	assert.True(t, Block(b, r).OK(), "%s", Block(b, r).Summary())
}

func TestBlock_DefaultedParameterMayBeOmittedFromInstance(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	// Gain's k has a default, so an instance without a parameter list is
	// still fully bound.
	b.Children[0].Parameters = nil

	report := Block(b, r)

	assert.True(t, report.OK(), "%s", report.Summary())
}

func TestBlock_DuplicateChildNames(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	dup := gainChild(t, r, "g")
	b.Children = append(b.Children, dup)
	b.Connections = append(b.Connections, model.Connection{
		From: model.Endpoint{Connector: "u"},
		To:   model.Endpoint{Instance: "g", Connector: "u"},
	})

	report := Block(b, r)

	require.False(t, report.OK())
	assert.NotEmpty(t, report.ByRule(RuleDuplicateName))
}

func TestBlock_UnitMismatchIsWarning(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Inputs[0].Unit = "K"
	b.Children[0].Inputs[0].Unit = "degC"

	report := Block(b, r)

	assert.True(t, report.OK(), "unit mismatch must not block initialization")
	issues := report.ByRule(RuleUnitMismatch)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
}

func TestBlock_StartOutOfBoundsIsWarning(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	b := plant(t, r)
	b.Inputs[0].Min = cty.NumberFloatVal(0)
	b.Inputs[0].Max = cty.NumberFloatVal(10)
	b.Inputs[0].Start = cty.NumberFloatVal(50)

	report := Block(b, r)

	assert.True(t, report.OK())
	issues := report.ByRule(RuleOutOfBounds)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
}

func TestBlock_NestedCompositePathsInReport(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	inner := plant(t, r)
	inner.Name = "sub"
	// Break the inner model: drop the connection feeding g.u.
	inner.Connections = inner.Connections[1:]

	outer := &model.Block{
		Name:     "outer",
		Type:     "outer",
		Kind:     model.Composite,
		Inputs:   []model.Connector{in("u", model.Real)},
		Outputs:  []model.Connector{out("y", model.Real)},
		Children: []*model.Block{inner},
		Connections: []model.Connection{
			{From: model.Endpoint{Connector: "u"}, To: model.Endpoint{Instance: "sub", Connector: "u"}},
			{From: model.Endpoint{Instance: "sub", Connector: "y"}, To: model.Endpoint{Connector: "y"}},
		},
	}

	report := Block(outer, r)

	require.False(t, report.OK())
	issues := report.ByRule(RuleUnconnectedInput)
	require.Len(t, issues, 1)
	assert.Equal(t, "sub.g", issues[0].Path, "issues inside nested composites carry the qualified path")
}
