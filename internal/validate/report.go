package validate

import (
	"fmt"
	"strings"
)

// Severity classifies an issue. Errors block initialization; warnings do
// not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule identifies which invariant an issue violates.
type Rule string

const (
	// RuleDanglingReference: a connection names an instance or connector
	// that does not exist, or uses an illegal shape.
	RuleDanglingReference Rule = "dangling-reference"
	// RuleUnknownType: a child's block type resolves neither to a
	// registered implementation nor to a composite definition.
	RuleUnknownType Rule = "unknown-type"
	// RuleUnconnectedInput: a declared input has no connection feeding it.
	RuleUnconnectedInput Rule = "unconnected-input"
	// RuleUnconnectedOutput: a composite boundary output has no child
	// output source.
	RuleUnconnectedOutput Rule = "unconnected-output"
	// RuleMultipleSources: an input (or boundary output) is the
	// destination of more than one connection.
	RuleMultipleSources Rule = "multiple-sources"
	// RuleTypeMismatch: a connection joins incompatible connector types.
	RuleTypeMismatch Rule = "type-mismatch"
	// RuleAlgebraicLoop: the dependency graph contains a cycle.
	RuleAlgebraicLoop Rule = "algebraic-loop"
	// RuleUnboundParameter: a parameter has neither a default nor an
	// instantiation-time override.
	RuleUnboundParameter Rule = "unbound-parameter"
	// RuleDuplicateName: sibling instances or connectors share a name.
	RuleDuplicateName Rule = "duplicate-name"
	// RuleImplMismatch: a block's declared connectors disagree with the
	// registered implementation's definition.
	RuleImplMismatch Rule = "implementation-mismatch"
	// RuleOutOfBounds: a declared start or parameter value violates its
	// own min/max bounds. Reported as a warning.
	RuleOutOfBounds Rule = "out-of-bounds"
	// RuleUnitMismatch: both ends of a connection declare units and they
	// differ. Reported as a warning; units never drive control flow.
	RuleUnitMismatch Rule = "unit-mismatch"
)

// Issue is one validation finding, located by instance path.
type Issue struct {
	Severity Severity
	Rule     Rule
	Path     string
	Message  string
}

func (i Issue) String() string {
	loc := i.Path
	if loc == "" {
		loc = "<root>"
	}
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.Rule, loc, i.Message)
}

// Report aggregates every issue found in one validation pass.
type Report struct {
	Issues []Issue
}

// OK reports whether the model may initialize: no error-severity issues.
func (r *Report) OK() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// ByRule returns the issues matching a rule.
func (r *Report) ByRule(rule Rule) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Rule == rule {
			out = append(out, i)
		}
	}
	return out
}

// Summary renders the whole report, one issue per line.
func (r *Report) Summary() string {
	if len(r.Issues) == 0 {
		return "model is valid"
	}
	lines := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		lines[i] = issue.String()
	}
	return strings.Join(lines, "\n")
}

func (r *Report) errorf(rule Rule, path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: SeverityError,
		Rule:     rule,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *Report) warnf(rule Rule, path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: SeverityWarning,
		Rule:     rule,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}
