package model

import "fmt"

// Endpoint names one terminal of a connection. Instance is the child
// instance name inside the enclosing composite, or empty when the endpoint
// is one of the composite's own boundary connectors.
type Endpoint struct {
	Instance  string
	Connector string
}

// Boundary reports whether the endpoint refers to the enclosing composite's
// own connector rather than a child's.
func (e Endpoint) Boundary() bool {
	return e.Instance == ""
}

func (e Endpoint) String() string {
	if e.Boundary() {
		return e.Connector
	}
	return e.Instance + "." + e.Connector
}

// Connection is a directed edge from an output terminal to an input
// terminal, scoped to one composite block. Three shapes are legal:
//
//   - boundary input  -> child input
//   - child output    -> child input
//   - child output    -> boundary output
//
// Each input terminal must be the destination of exactly one connection;
// outputs may fan out freely. The validator enforces both rules.
type Connection struct {
	From        Endpoint
	To          Endpoint
	Description string
}

func (c Connection) String() string {
	return fmt.Sprintf("%s -> %s", c.From, c.To)
}
