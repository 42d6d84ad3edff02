// Package depgraph holds the resolved dependency graph and renders it.
//
// A [Graph] has one [Node] per selected package and an [Edge] for every
// "depends on" relation that held in the final resolution. Python projects
// may depend on each other, so the graph can contain cycles; [Graph.Cycles]
// lists them and [Graph.InstallOrder] still yields a deterministic
// dependencies-first order.
//
// [ToDOT] produces Graphviz DOT text and [RenderSVG] turns it into SVG
// through the embedded Graphviz from github.com/goccy/go-graphviz.
package depgraph
