package resolve

import (
	"maps"
	"slices"

	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep440"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// selection is an immutable record of one chosen release. Adding extras
// replaces the record rather than mutating it, so snapshots stay valid.
type selection struct {
	release metadata.Release
	version pep440.Version
	extras  []string
	chain   []string
	deps    []pep508.Requirement
}

func (s *selection) withExtras(extras []string) *selection {
	next := *s
	next.extras = extras
	return &next
}

// state is everything a decision can change. Decisions snapshot it with
// clone; a snapshot is never mutated after it is taken.
type state struct {
	selected map[string]*selection
	edges    map[string][]Edge // every requirement accepted so far, by package
	frontier []Edge            // FIFO of requirements not yet processed
}

func newState() *state {
	return &state{
		selected: make(map[string]*selection),
		edges:    make(map[string][]Edge),
	}
}

func (s *state) clone() *state {
	edges := make(map[string][]Edge, len(s.edges))
	for k, v := range s.edges {
		edges[k] = slices.Clip(v)
	}
	return &state{
		selected: maps.Clone(s.selected),
		edges:    edges,
		frontier: slices.Clone(s.frontier),
	}
}

func (s *state) addEdge(name string, e Edge) {
	s.edges[name] = append(s.edges[name], e)
}

// takeAll removes every frontier edge on name and returns them in order.
func (s *state) takeAll(name string) []Edge {
	var taken []Edge
	rest := make([]Edge, 0, len(s.frontier))
	for _, e := range s.frontier {
		if e.Requirement.Name == name {
			taken = append(taken, e)
		} else {
			rest = append(rest, e)
		}
	}
	s.frontier = rest
	return taken
}

// specifier is the conjunction of every accepted requirement on name.
func (s *state) specifier(name string) pep440.Specifier {
	var spec pep440.Specifier
	for _, e := range s.edges[name] {
		spec = spec.And(e.Requirement.Specifier)
	}
	return spec
}

// extras is the sorted union of extras requested by accepted requirements
// on name.
func (s *state) extras(name string) []string {
	var out []string
	for _, e := range s.edges[name] {
		for _, x := range e.Requirement.Extras {
			if !slices.Contains(out, x) {
				out = append(out, x)
			}
		}
	}
	slices.Sort(out)
	return out
}

// decision is a choice point: the state just before name was selected and
// the candidates not yet tried.
type decision struct {
	snap   *state
	name   string
	via    Edge
	chosen string
	rest   []metadata.Release
}
