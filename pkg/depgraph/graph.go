package depgraph

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Metadata stores arbitrary key-value pairs attached to nodes or edges,
// such as the download URL of a release or the requirement text of an edge.
// Metadata maps are never nil once added to a graph.
type Metadata map[string]any

// Node is one selected package.
type Node struct {
	ID      string   // Normalized package name
	Version string   // Selected version
	Root    bool     // Required directly by the user
	Meta    Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Label returns "name==version", or the bare ID when no version is set.
func (n Node) Label() string {
	if n.Version == "" {
		return n.ID
	}
	return n.ID + "==" + n.Version
}

// Edge is a "From depends on To" relation.
type Edge struct {
	From string   // Dependent package
	To   string   // Dependency
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)
}

// Graph is the resolved dependency graph. Unlike a layered DAG it may
// contain cycles, since Python projects can depend on each other.
//
// The zero value is not usable; use [New]. Graph is not safe for concurrent
// use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> dependency IDs
	incoming map[string][]string // nodeID -> dependent IDs
	meta     Metadata
}

// New creates an empty Graph with optional graph-level metadata.
func New(meta Metadata) *Graph {
	if meta == nil {
		meta = Metadata{}
	}
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (g *Graph) Meta() Metadata { return g.meta }

// AddNode adds a node to the graph.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	g.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a directed edge between two existing nodes. A repeated
// From→To pair is ignored.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(g.outgoing[e.From], e.To) {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(g.nodes))
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.nodes[id]
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the dependencies of id. The slice must not be modified.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the dependents of id. The slice must not be modified.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// Roots returns the nodes marked Root, sorted by ID.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.Nodes() {
		if n.Root {
			roots = append(roots, n)
		}
	}
	return roots
}

// Sinks returns nodes without dependencies, sorted by ID.
func (g *Graph) Sinks() []*Node {
	var sinks []*Node
	for _, n := range g.Nodes() {
		if len(g.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// Cycles returns every dependency cycle as the list of node IDs on it,
// each rotated to start at its smallest ID. Output is sorted.
func (g *Graph) Cycles() [][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	seen := make(map[string]bool)
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range g.sortedChildren(id) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				i := slices.Index(stack, child)
				cycle := rotateMin(slices.Clone(stack[i:]))
				k := strings.Join(cycle, "\x00")
				if !seen[k] {
					seen[k] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, n := range g.Nodes() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	slices.SortFunc(cycles, slices.Compare[[]string])
	return cycles
}

// InstallOrder returns node IDs with every dependency ahead of its
// dependents. Cycles have no valid order; their members are placed by a
// depth-first walk in ID order, so the result is still deterministic.
func (g *Graph) InstallOrder() []string {
	visited := make(map[string]bool, len(g.nodes))
	order := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, child := range g.sortedChildren(id) {
			visit(child)
		}
		order = append(order, id)
	}
	for _, n := range g.Nodes() {
		visit(n.ID)
	}
	return order
}

func (g *Graph) sortedChildren(id string) []string {
	return slices.Sorted(slices.Values(g.outgoing[id]))
}

func rotateMin(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	m := 0
	for i, id := range ids {
		if id < ids[m] {
			m = i
		}
	}
	return slices.Concat(ids[m:], ids[:m])
}
