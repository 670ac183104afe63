package graph

import (
	"fmt"

	"github.com/vk/blockflow/internal/model"
)

// Graph is a directed dependency graph. Nodes are identified by string IDs
// and kept in insertion order so that consumers can apply deterministic
// tie-breaking.
type Graph struct {
	order []string
	nodes map[string]*node
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	id         string
	index      int
	deps       map[string]*node
	dependents map[string]*node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode registers a node with the given ID. Adding an existing ID is a
// no-op, preserving the original insertion index.
func (g *Graph) AddNode(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		index:      len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
}

// AddEdge records that `to` depends on `from`. Both nodes must already
// exist. Self-edges are rejected here; longer cycles are left for
// FindCycle.
func (g *Graph) AddEdge(from, to string) error {
	src, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("add edge %q -> %q: source node not found", from, to)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("add edge %q -> %q: destination node not found", from, to)
	}
	if from == to {
		return fmt.Errorf("add edge %q -> %q: self-referential edge", from, to)
	}
	src.dependents[to] = dst
	dst.deps[from] = src
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns all node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Index returns the insertion index of a node, or -1 if it is unknown.
func (g *Graph) Index(id string) int {
	if n, ok := g.nodes[id]; ok {
		return n.index
	}
	return -1
}

// DependenciesOf returns the IDs of the nodes id depends on, in insertion
// order.
func (g *Graph) DependenciesOf(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return g.sorted(n.deps)
}

// DependentsOf returns the IDs of the nodes depending on id, in insertion
// order.
func (g *Graph) DependentsOf(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return g.sorted(n.dependents)
}

func (g *Graph) sorted(set map[string]*node) []string {
	out := make([]string, 0, len(set))
	for _, id := range g.order {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// FromComposite builds the dependency graph of a composite block. Every
// connection whose destination is a child input contributes an edge; edges
// into the composite's own boundary outputs are not scheduling dependencies.
//
// Connections referencing unknown instances are skipped: the validator has
// already reported them, and graph construction must stay total so that
// validation can describe every problem at once.
func FromComposite(b *model.Block) *Graph {
	g := New()
	for _, child := range b.Children {
		g.AddNode(child.Name)
	}
	for _, conn := range b.Connections {
		if conn.From.Boundary() || conn.To.Boundary() {
			continue
		}
		if _, ok := g.nodes[conn.From.Instance]; !ok {
			continue
		}
		if _, ok := g.nodes[conn.To.Instance]; !ok {
			continue
		}
		if conn.From.Instance == conn.To.Instance {
			// A block feeding itself is the smallest algebraic loop.
			// Record it as a real edge so cycle detection reports it.
			n := g.nodes[conn.From.Instance]
			n.deps[n.id] = n
			n.dependents[n.id] = n
			continue
		}
		// Duplicate edges collapse in the adjacency maps.
		_ = g.AddEdge(conn.From.Instance, conn.To.Instance)
	}
	return g
}

// FindCycle returns the instance IDs of one dependency cycle in order, with
// the first node repeated at the end, or nil when the graph is acyclic.
// Detection is DFS with a recursion stack, the path reconstructed from the
// stack when a back edge is found.
func (g *Graph) FindCycle() []string {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var visit func(n *node) []string
	visit = func(n *node) []string {
		visiting[n.id] = true
		path = append(path, n.id)

		for _, depID := range g.sorted(n.deps) {
			dep := n.deps[depID]
			if visiting[dep.id] {
				for i, id := range path {
					if id == dep.id {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, dep.id)
					}
				}
			}
			if !visited[dep.id] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		delete(visiting, n.id)
		visited[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if !visited[id] {
			if cycle := visit(g.nodes[id]); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
