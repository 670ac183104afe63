package validate

import (
	"github.com/vk/blockflow/internal/graph"
	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
	"github.com/vk/blockflow/internal/scheduler"
)

// Block validates a block definition against the supplied implementation
// registry and returns the full report. Composite children are validated
// recursively; nothing short-circuits, so the report describes every
// problem in the model at once.
func Block(b *model.Block, reg *registry.Registry) *Report {
	report := &Report{}
	validateBlock(b, "", reg, report)
	return report
}

func validateBlock(b *model.Block, path string, reg *registry.Registry, report *Report) {
	validateConnectors(b, path, report)
	validateParameters(b, path, report)

	switch b.Kind {
	case model.Composite:
		validateComposite(b, path, reg, report)
	case model.Elementary:
		validateElementary(b, path, reg, report)
	default:
		report.errorf(RuleUnknownType, path, "block %q has unknown kind %q", b.Name, b.Kind)
	}
}

// validateConnectors checks connector declarations independent of wiring.
func validateConnectors(b *model.Block, path string, report *Report) {
	seen := make(map[string]model.Causality)
	for _, set := range [][]model.Connector{b.Inputs, b.Outputs} {
		for _, c := range set {
			if prev, dup := seen[c.Name]; dup {
				report.errorf(RuleDuplicateName, path,
					"connector %q declared twice (%s and %s)", c.Name, prev, c.Causality)
			}
			seen[c.Name] = c.Causality

			if !c.Type.Valid() {
				report.errorf(RuleUnknownType, path, "connector %q has invalid type %q", c.Name, c.Type)
			}
			if c.HasStart() && !c.InBounds(c.Start) {
				report.warnf(RuleOutOfBounds, path,
					"start value of connector %q violates its declared bounds", c.Name)
			}
		}
	}
}

func validateParameters(b *model.Block, path string, report *Report) {
	seen := make(map[string]bool)
	for _, p := range b.Parameters {
		if seen[p.Name] {
			report.errorf(RuleDuplicateName, path, "parameter %q declared twice", p.Name)
		}
		seen[p.Name] = true

		if !p.Type.Valid() {
			report.errorf(RuleUnknownType, path, "parameter %q has invalid type %q", p.Name, p.Type)
		}
		if !p.Bound() {
			report.errorf(RuleUnboundParameter, path,
				"parameter %q has neither a default nor an override", p.Name)
		} else if !p.InBounds() {
			report.warnf(RuleOutOfBounds, path,
				"value of parameter %q violates its declared bounds", p.Name)
		}
	}
}

// validateElementary checks that the block type resolves in the registry and
// that the block's declared connectors agree with the registered definition.
func validateElementary(b *model.Block, path string, reg *registry.Registry, report *Report) {
	impl, ok := reg.Lookup(b.Type)
	if !ok {
		report.errorf(RuleUnknownType, path,
			"no implementation registered for block type %q", b.Type)
		return
	}
	def := impl.Def
	checkParity(b.Inputs, def.Inputs, "input", path, report)
	checkParity(b.Outputs, def.Outputs, "output", path, report)

	declared := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		declared[p.Name] = true
	}
	onInstance := make(map[string]bool, len(b.Parameters))
	for _, p := range b.Parameters {
		onInstance[p.Name] = true
		if !declared[p.Name] {
			report.errorf(RuleImplMismatch, path,
				"block type %q declares no parameter %q", b.Type, p.Name)
		}
	}
	// A definition parameter without a default must be bound on the
	// instance; one the instance never lists can only fail at evaluation
	// time, so it is caught here instead.
	for _, p := range def.Parameters {
		if !onInstance[p.Name] && !p.Bound() {
			report.errorf(RuleUnboundParameter, path,
				"parameter %q of block type %q has neither a default nor an instance value", p.Name, b.Type)
		}
	}
}

// checkParity compares a block instance's connectors with the registered
// definition's, in both directions.
func checkParity(got, want []model.Connector, kind, path string, report *Report) {
	wantByName := make(map[string]model.Connector, len(want))
	for _, c := range want {
		wantByName[c.Name] = c
	}
	gotNames := make(map[string]bool, len(got))
	for _, c := range got {
		gotNames[c.Name] = true
		w, ok := wantByName[c.Name]
		if !ok {
			report.errorf(RuleImplMismatch, path,
				"instance declares %s %q which the implementation does not define", kind, c.Name)
			continue
		}
		if c.Type != w.Type {
			report.errorf(RuleImplMismatch, path,
				"%s %q is %s in the instance but %s in the implementation", kind, c.Name, c.Type, w.Type)
		}
	}
	for _, c := range want {
		if !gotNames[c.Name] {
			report.errorf(RuleImplMismatch, path,
				"implementation defines %s %q which the instance does not declare", kind, c.Name)
		}
	}
}

func validateComposite(b *model.Block, path string, reg *registry.Registry, report *Report) {
	childNames := make(map[string]bool, len(b.Children))
	for _, child := range b.Children {
		if childNames[child.Name] {
			report.errorf(RuleDuplicateName, path, "child instance %q declared twice", child.Name)
		}
		childNames[child.Name] = true
	}

	// destinations tracks how many connections feed each input terminal,
	// keyed by the destination endpoint, for the single-assignment rule.
	destinations := make(map[model.Endpoint]int)

	for _, conn := range b.Connections {
		srcType, srcUnit, srcOK := resolveSource(b, conn, path, report)
		dstType, dstUnit, dstOK := resolveDest(b, conn, path, report)
		if dstOK {
			destinations[conn.To]++
		}
		if !srcOK || !dstOK {
			continue
		}
		if !srcType.CompatibleWith(dstType) {
			report.errorf(RuleTypeMismatch, path,
				"connection %s joins %s to %s", conn, srcType, dstType)
		}
		if srcUnit != "" && dstUnit != "" && srcUnit != dstUnit {
			report.warnf(RuleUnitMismatch, path,
				"connection %s joins unit %q to unit %q", conn, srcUnit, dstUnit)
		}
	}

	// Rule 1/2: every child input and boundary output has exactly one source.
	for _, child := range b.Children {
		for _, in := range child.Inputs {
			ep := model.Endpoint{Instance: child.Name, Connector: in.Name}
			switch n := destinations[ep]; {
			case n == 0:
				report.errorf(RuleUnconnectedInput, model.JoinPath(path, child.Name),
					"input %q has no connection", in.Name)
			case n > 1:
				report.errorf(RuleMultipleSources, model.JoinPath(path, child.Name),
					"input %q has %d connections; exactly one is allowed", in.Name, n)
			}
		}
	}
	for _, out := range b.Outputs {
		ep := model.Endpoint{Connector: out.Name}
		switch n := destinations[ep]; {
		case n == 0:
			report.errorf(RuleUnconnectedOutput, path,
				"composite output %q has no child output source", out.Name)
		case n > 1:
			report.errorf(RuleMultipleSources, path,
				"composite output %q has %d sources; exactly one is allowed", out.Name, n)
		}
	}

	// Rule 4: acyclicity, using the scheduler's cycle detector.
	if _, err := scheduler.Order(graph.FromComposite(b)); err != nil {
		if cycleErr, ok := err.(*scheduler.CycleError); ok {
			report.errorf(RuleAlgebraicLoop, path, "%s", cycleErr.Error())
		} else {
			report.errorf(RuleAlgebraicLoop, path, "ordering failed: %v", err)
		}
	}

	// Rule 5: recurse into children.
	for _, child := range b.Children {
		validateBlock(child, model.JoinPath(path, child.Name), reg, report)
	}
}

// resolveSource resolves the `from` endpoint of a connection to a connector
// type and unit, reporting dangling references and illegal shapes.
func resolveSource(b *model.Block, conn model.Connection, path string, report *Report) (model.Type, string, bool) {
	if conn.From.Boundary() {
		c, ok := b.Input(conn.From.Connector)
		if !ok {
			report.errorf(RuleDanglingReference, path,
				"connection %s: composite has no input %q", conn, conn.From.Connector)
			return "", "", false
		}
		if conn.To.Boundary() {
			report.errorf(RuleDanglingReference, path,
				"connection %s: direct input-to-output passthrough is not a legal shape", conn)
			return "", "", false
		}
		return c.Type, c.Unit, true
	}
	child, ok := b.Child(conn.From.Instance)
	if !ok {
		report.errorf(RuleDanglingReference, path,
			"connection %s: unknown instance %q", conn, conn.From.Instance)
		return "", "", false
	}
	c, ok := child.Output(conn.From.Connector)
	if !ok {
		report.errorf(RuleDanglingReference, path,
			"connection %s: instance %q has no output %q", conn, conn.From.Instance, conn.From.Connector)
		return "", "", false
	}
	return c.Type, c.Unit, true
}

// resolveDest resolves the `to` endpoint of a connection.
func resolveDest(b *model.Block, conn model.Connection, path string, report *Report) (model.Type, string, bool) {
	if conn.To.Boundary() {
		c, ok := b.Output(conn.To.Connector)
		if !ok {
			report.errorf(RuleDanglingReference, path,
				"connection %s: composite has no output %q", conn, conn.To.Connector)
			return "", "", false
		}
		return c.Type, c.Unit, true
	}
	child, ok := b.Child(conn.To.Instance)
	if !ok {
		report.errorf(RuleDanglingReference, path,
			"connection %s: unknown instance %q", conn, conn.To.Instance)
		return "", "", false
	}
	c, ok := child.Input(conn.To.Connector)
	if !ok {
		report.errorf(RuleDanglingReference, path,
			"connection %s: instance %q has no input %q", conn, conn.To.Instance, conn.To.Connector)
		return "", "", false
	}
	return c.Type, c.Unit, true
}
