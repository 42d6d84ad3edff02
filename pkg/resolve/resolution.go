package resolve

import (
	"maps"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/matzehuels/wheelwright/pkg/depgraph"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// Edge is one requirement in the resolution graph: Parent (at
// ParentVersion) requires Requirement. Root requirements have an empty
// Parent.
type Edge struct {
	Parent        string             `json:"parent,omitempty"`
	ParentVersion string             `json:"parent_version,omitempty"`
	Requirement   pep508.Requirement `json:"-"`
	Chain         []string           `json:"chain,omitempty"` // Selections from a root down to Parent
}

// String renders the edge as "a==1.0 requires c>=2.0".
func (e Edge) String() string {
	who := "root"
	if e.Parent != "" {
		who = e.Parent + "==" + e.ParentVersion
	}
	return who + " requires " + e.Requirement.String()
}

// Node is one selected package. Nodes refer to each other by name only.
type Node struct {
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	Release      metadata.Release `json:"release"`
	Extras       []string         `json:"extras,omitempty"`
	Root         bool             `json:"root,omitempty"`
	RequiredBy   []Edge           `json:"-"`
	Dependencies []string         `json:"dependencies,omitempty"` // Names of selected dependencies, sorted
	Chain        []string         `json:"chain,omitempty"`        // Selection path that first required it
}

// Stats summarizes a resolution run.
type Stats struct {
	Packages   int           `json:"packages"`
	Fetches    int           `json:"fetches"`    // Results answered by the index
	CacheHits  int           `json:"cache_hits"` // Results answered by the metadata cache
	Backtracks int           `json:"backtracks"`
	Duration   time.Duration `json:"duration"`
}

// Resolution is a complete, consistent selection of one version per
// required package.
type Resolution struct {
	RunID    string               `json:"run_id"`
	Roots    []pep508.Requirement `json:"-"`
	Packages map[string]*Node     `json:"packages"`
	Stats    Stats                `json:"stats"`
}

// Names returns the selected package names, sorted.
func (r *Resolution) Names() []string {
	return slices.Sorted(maps.Keys(r.Packages))
}

// Versions returns the resolved name → version map.
func (r *Resolution) Versions() map[string]string {
	out := make(map[string]string, len(r.Packages))
	for name, n := range r.Packages {
		out[name] = n.Version
	}
	return out
}

// Graph returns the resolved dependency graph. Edges carry the requirement
// specifier under the "specifier" metadata key.
func (r *Resolution) Graph() *depgraph.Graph {
	g := depgraph.New(depgraph.Metadata{"run_id": r.RunID})
	for _, name := range r.Names() {
		n := r.Packages[name]
		meta := depgraph.Metadata{}
		if n.Release.URL != "" {
			meta["url"] = n.Release.URL
		}
		if n.Release.Digest != "" {
			meta["digest"] = n.Release.Digest.String()
		}
		_ = g.AddNode(depgraph.Node{ID: name, Version: n.Version, Root: n.Root, Meta: meta})
	}
	for _, name := range r.Names() {
		for _, e := range r.Packages[name].RequiredBy {
			if e.Parent == "" {
				continue
			}
			_ = g.AddEdge(depgraph.Edge{
				From: e.Parent,
				To:   name,
				Meta: depgraph.Metadata{"specifier": e.Requirement.Specifier.String()},
			})
		}
	}
	return g
}

// Install is the hand-off to an installer for one selected release.
type Install struct {
	Name     string        `json:"name"`
	Version  string        `json:"version"`
	URL      string        `json:"url,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Digest   digest.Digest `json:"digest,omitempty"`
}

// Plan returns the selected releases with every dependency ahead of its
// dependents.
func (r *Resolution) Plan() []Install {
	order := r.Graph().InstallOrder()
	plan := make([]Install, 0, len(order))
	for _, name := range order {
		n := r.Packages[name]
		plan = append(plan, Install{
			Name:     n.Name,
			Version:  n.Version,
			URL:      n.Release.URL,
			Filename: n.Release.Filename,
			Digest:   n.Release.Digest,
		})
	}
	return plan
}
