package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
)

// snapshotVersion guards the blob layout.
const snapshotVersion = 1

// signalRecord persists one signal value with enough type information to
// restore it without model introspection.
type signalRecord struct {
	Path      string          `json:"path"`
	Connector string          `json:"connector"`
	Type      json.RawMessage `json:"type"`
	Value     json.RawMessage `json:"value"`
}

// stateRecord persists one variable of an instance's implementation state.
type stateRecord struct {
	Path  string          `json:"path"`
	Name  string          `json:"name"`
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

// snapshotDoc is the persisted layout: the flattened signal table, the step
// counter, and per-instance implementation state. The cached graph and
// order are never serialized; they are pure functions of the block model.
type snapshotDoc struct {
	Version int            `json:"version"`
	Block   string         `json:"block"`
	Step    uint64         `json:"step"`
	Signals []signalRecord `json:"signals"`
	State   []stateRecord  `json:"state"`
}

// Snapshot serializes the context's signal table, step counter, and
// instance state into an opaque blob. Snapshots of a faulted context are
// allowed: the partially updated table is exactly what a diagnostic caller
// wants to inspect.
func (c *Context) Snapshot() ([]byte, error) {
	if c.state == Unvalidated {
		return nil, ErrNotInitialized
	}

	doc := &snapshotDoc{
		Version: snapshotVersion,
		Block:   c.block.Name,
		Step:    c.stepCount,
	}

	signals := make(map[signalKey]cty.Value)
	states := make(map[string]map[string]cty.Value)
	c.collect("", signals, states)

	for key, v := range signals {
		rec, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("snapshot signal %s.%s: %w", key.instance, key.connector, err)
		}
		rec.Path = key.instance
		rec.Connector = key.connector
		doc.Signals = append(doc.Signals, *rec)
	}
	for path, vars := range states {
		for name, v := range vars {
			rec, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("snapshot state %s/%s: %w", path, name, err)
			}
			doc.State = append(doc.State, stateRecord{
				Path: path, Name: name, Type: rec.Type, Value: rec.Value,
			})
		}
	}

	sort.Slice(doc.Signals, func(i, j int) bool {
		a, b := doc.Signals[i], doc.Signals[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Connector < b.Connector
	})
	sort.Slice(doc.State, func(i, j int) bool {
		a, b := doc.State[i], doc.State[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Name < b.Name
	})

	return json.Marshal(doc)
}

func encodeValue(v cty.Value) (*signalRecord, error) {
	t, err := ctyjson.MarshalType(v.Type())
	if err != nil {
		return nil, err
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	return &signalRecord{Type: t, Value: raw}, nil
}

// collect flattens this context and every nested one into qualified signal
// paths. A composite child's boundary signals appear once, under the
// child's path; the parent's copy of the same terminal carries identical
// values by construction.
func (c *Context) collect(prefix string, signals map[signalKey]cty.Value, states map[string]map[string]cty.Value) {
	for key, v := range c.signals {
		qualified := prefix
		if key.instance != "" {
			qualified = model.JoinPath(prefix, key.instance)
		}
		signals[signalKey{qualified, key.connector}] = v
	}
	if len(c.selfState) > 0 {
		states[prefix] = cloneValues(c.selfState)
	}
	for name, inst := range c.instances {
		qualified := model.JoinPath(prefix, name)
		if inst.nested != nil {
			inst.nested.collect(qualified, signals, states)
		} else if len(inst.implState) > 0 {
			states[qualified] = cloneValues(inst.implState)
		}
	}
}

func cloneValues(m map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Restore builds a fresh context over the same immutable block definition
// and registry, then overlays the snapshot's signals, step counter, and
// instance state. The graph and order are rederived, never deserialized.
// The restored context's subsequent stepping is indistinguishable from the
// original's.
func Restore(ctx context.Context, b *model.Block, reg *registry.Registry, blob []byte) (*Context, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	if doc.Block != b.Name {
		return nil, fmt.Errorf("snapshot was taken from block %q, not %q", doc.Block, b.Name)
	}

	c := New(b, reg)
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	for _, rec := range doc.Signals {
		v, err := decodeValue(rec.Type, rec.Value)
		if err != nil {
			return nil, fmt.Errorf("restore signal %s.%s: %w", rec.Path, rec.Connector, err)
		}
		if err := c.restoreSignal(model.SplitPath(rec.Path), rec.Connector, v); err != nil {
			return nil, err
		}
	}
	for _, rec := range doc.State {
		v, err := decodeValue(rec.Type, rec.Value)
		if err != nil {
			return nil, fmt.Errorf("restore state %s/%s: %w", rec.Path, rec.Name, err)
		}
		if err := c.restoreState(model.SplitPath(rec.Path), rec.Name, v); err != nil {
			return nil, err
		}
	}

	c.setStep(doc.Step)
	if doc.Step > 0 {
		c.state = Stepping
	}
	return c, nil
}

func decodeValue(rawType, rawValue json.RawMessage) (cty.Value, error) {
	t, err := ctyjson.UnmarshalType(rawType)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(rawValue, t)
}

// restoreSignal writes a persisted value back into the owning table(s). A
// composite child's boundary terminal exists both in the parent's table and
// as the nested context's boundary, so both are updated.
func (c *Context) restoreSignal(segs []string, connector string, v cty.Value) error {
	if len(segs) == 0 {
		c.signals[signalKey{"", connector}] = v
		return nil
	}
	head := segs[0]
	inst, known := c.instances[head]
	if !known {
		return fmt.Errorf("snapshot references unknown instance %q", head)
	}
	if len(segs) == 1 {
		c.signals[signalKey{head, connector}] = v
		if inst.nested != nil {
			return inst.nested.restoreSignal(nil, connector, v)
		}
		return nil
	}
	if inst.nested == nil {
		return fmt.Errorf("snapshot references %q below elementary instance %q", segs[1], head)
	}
	return inst.nested.restoreSignal(segs[1:], connector, v)
}

func (c *Context) restoreState(segs []string, name string, v cty.Value) error {
	if len(segs) == 0 {
		if c.selfState == nil {
			return fmt.Errorf("snapshot carries state for a composite block")
		}
		c.selfState[name] = v
		return nil
	}
	head := segs[0]
	inst, known := c.instances[head]
	if !known {
		return fmt.Errorf("snapshot references unknown instance %q", head)
	}
	if inst.nested != nil {
		return inst.nested.restoreState(segs[1:], name, v)
	}
	if len(segs) > 1 {
		return fmt.Errorf("snapshot references %q below elementary instance %q", segs[1], head)
	}
	inst.implState[name] = v
	return nil
}

// setStep aligns this context's and every nested context's step counter;
// nested contexts step in lockstep with their parent.
func (c *Context) setStep(n uint64) {
	c.stepCount = n
	for _, inst := range c.instances {
		if inst.nested != nil {
			inst.nested.setStep(n)
			if n > 0 {
				inst.nested.state = Stepping
			}
		}
	}
}
