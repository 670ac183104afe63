package std

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	Module{}.Register(r)
	return r
}

// eval runs one evaluation of a registered block type against explicit
// inputs, parameters, and a state bag, returning the written outputs.
func eval(t *testing.T, r *registry.Registry, typeID string, inputs, params, state map[string]cty.Value) map[string]cty.Value {
	t.Helper()
	impl, ok := r.Lookup(typeID)
	require.True(t, ok, "type %s not registered", typeID)

	merged := make(map[string]cty.Value)
	for _, p := range impl.Def.Parameters {
		if p.Bound() {
			merged[p.Name] = p.Value
		}
	}
	for k, v := range params {
		merged[k] = v
	}

	outputNames := make([]string, len(impl.Def.Outputs))
	for i, out := range impl.Def.Outputs {
		outputNames[i] = out.Name
	}
	call := registry.NewCall(typeID, inputs, merged, state, outputNames)
	require.NoError(t, impl.Eval(context.Background(), call))
	return call.Outputs()
}

func num(f float64) cty.Value { return cty.NumberFloatVal(f) }

func asFloat(t *testing.T, v cty.Value) float64 {
	t.Helper()
	f, _ := v.AsBigFloat().Float64()
	return f
}

func TestRegister_AllTypes(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	assert.Equal(t, []string{
		"Accumulator", "Add", "And", "Constant", "Gain", "Greater",
		"Hysteresis", "Limiter", "Max", "Min", "Not", "Or", "Subtract",
		"Switch",
	}, r.Types())
}

func TestConstant(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	outs := eval(t, r, "Constant", nil, map[string]cty.Value{"k": num(21.5)}, nil)
	assert.Equal(t, 21.5, asFloat(t, outs["y"]))
}

func TestGain(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	outs := eval(t, r, "Gain",
		map[string]cty.Value{"u": num(3)},
		map[string]cty.Value{"k": num(2)},
		nil)
	assert.Equal(t, 6.0, asFloat(t, outs["y"]))
}

func TestGain_DefaultIsIdentity(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	outs := eval(t, r, "Gain", map[string]cty.Value{"u": num(7)}, nil, nil)
	assert.Equal(t, 7.0, asFloat(t, outs["y"]))
}

func TestAdd(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	outs := eval(t, r, "Add",
		map[string]cty.Value{"u1": num(2), "u2": num(3)},
		map[string]cty.Value{"k1": num(1), "k2": num(-1)},
		nil)
	assert.Equal(t, -1.0, asFloat(t, outs["y"]))
}

func TestSubtract(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	outs := eval(t, r, "Subtract", map[string]cty.Value{"u1": num(5), "u2": num(1.5)}, nil, nil)
	assert.Equal(t, 3.5, asFloat(t, outs["y"]))
}

func TestLimiter(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	params := map[string]cty.Value{"uMin": num(0), "uMax": num(10)}

	outs := eval(t, r, "Limiter", map[string]cty.Value{"u": num(5)}, params, nil)
	assert.Equal(t, 5.0, asFloat(t, outs["y"]), "in-range input passes through")

	outs = eval(t, r, "Limiter", map[string]cty.Value{"u": num(-3)}, params, nil)
	assert.Equal(t, 0.0, asFloat(t, outs["y"]), "below the range clamps to uMin")

	outs = eval(t, r, "Limiter", map[string]cty.Value{"u": num(42)}, params, nil)
	assert.Equal(t, 10.0, asFloat(t, outs["y"]), "above the range clamps to uMax")
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	inputs := map[string]cty.Value{"u1": num(2), "u2": num(-4)}

	outs := eval(t, r, "Min", inputs, nil, nil)
	assert.Equal(t, -4.0, asFloat(t, outs["y"]))

	outs = eval(t, r, "Max", inputs, nil, nil)
	assert.Equal(t, 2.0, asFloat(t, outs["y"]))
}

func TestSwitch(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	inputs := map[string]cty.Value{"u1": num(1), "u2": num(2), "active": cty.True}

	outs := eval(t, r, "Switch", inputs, nil, nil)
	assert.Equal(t, 1.0, asFloat(t, outs["y"]))

	inputs["active"] = cty.False
	outs = eval(t, r, "Switch", inputs, nil, nil)
	assert.Equal(t, 2.0, asFloat(t, outs["y"]))
}

func TestGreater(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	outs := eval(t, r, "Greater", map[string]cty.Value{"u1": num(2), "u2": num(1)}, nil, nil)
	assert.True(t, outs["y"].True())

	outs = eval(t, r, "Greater", map[string]cty.Value{"u1": num(1), "u2": num(1)}, nil, nil)
	assert.False(t, outs["y"].True(), "comparison is strict")
}

func TestHysteresis(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	params := map[string]cty.Value{"uLow": num(2), "uHigh": num(8)}
	state := map[string]cty.Value{}

	// Starts off, stays off inside the band.
	outs := eval(t, r, "Hysteresis", map[string]cty.Value{"u": num(5)}, params, state)
	assert.False(t, outs["y"].True())

	// Crossing uHigh switches on.
	outs = eval(t, r, "Hysteresis", map[string]cty.Value{"u": num(9)}, params, state)
	assert.True(t, outs["y"].True())

	// Back inside the band holds the previous output.
	outs = eval(t, r, "Hysteresis", map[string]cty.Value{"u": num(5)}, params, state)
	assert.True(t, outs["y"].True())

	// Dropping below uLow switches off.
	outs = eval(t, r, "Hysteresis", map[string]cty.Value{"u": num(1)}, params, state)
	assert.False(t, outs["y"].True())
}

func TestAccumulator(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	state := map[string]cty.Value{}

	for i, want := range []float64{1.5, 3, 4.5} {
		outs := eval(t, r, "Accumulator", map[string]cty.Value{"u": num(1.5)}, nil, state)
		assert.Equal(t, want, asFloat(t, outs["y"]), "step %d", i)
	}
}

func TestLogic(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	outs := eval(t, r, "Not", map[string]cty.Value{"u": cty.True}, nil, nil)
	assert.False(t, outs["y"].True())

	outs = eval(t, r, "And", map[string]cty.Value{"u1": cty.True, "u2": cty.False}, nil, nil)
	assert.False(t, outs["y"].True())

	outs = eval(t, r, "And", map[string]cty.Value{"u1": cty.True, "u2": cty.True}, nil, nil)
	assert.True(t, outs["y"].True())

	outs = eval(t, r, "Or", map[string]cty.Value{"u1": cty.False, "u2": cty.True}, nil, nil)
	assert.True(t, outs["y"].True())

	outs = eval(t, r, "Or", map[string]cty.Value{"u1": cty.False, "u2": cty.False}, nil, nil)
	assert.False(t, outs["y"].True())
}
