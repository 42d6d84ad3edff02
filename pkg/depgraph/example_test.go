package depgraph_test

import (
	"fmt"

	"github.com/matzehuels/wheelwright/pkg/depgraph"
)

func ExampleGraph_InstallOrder() {
	// flask → werkzeug → markupsafe, flask → click
	g := depgraph.New(nil)
	_ = g.AddNode(depgraph.Node{ID: "flask", Version: "3.0.0", Root: true})
	_ = g.AddNode(depgraph.Node{ID: "werkzeug", Version: "3.0.1"})
	_ = g.AddNode(depgraph.Node{ID: "markupsafe", Version: "2.1.3"})
	_ = g.AddNode(depgraph.Node{ID: "click", Version: "8.1.7"})
	_ = g.AddEdge(depgraph.Edge{From: "flask", To: "werkzeug"})
	_ = g.AddEdge(depgraph.Edge{From: "flask", To: "click"})
	_ = g.AddEdge(depgraph.Edge{From: "werkzeug", To: "markupsafe"})

	fmt.Println(g.InstallOrder())
	// Output:
	// [click markupsafe werkzeug flask]
}

func ExampleGraph_Cycles() {
	// Projects that depend on each other form a cycle
	g := depgraph.New(nil)
	_ = g.AddNode(depgraph.Node{ID: "sphinx", Root: true})
	_ = g.AddNode(depgraph.Node{ID: "sphinxcontrib-applehelp"})
	_ = g.AddEdge(depgraph.Edge{From: "sphinx", To: "sphinxcontrib-applehelp"})
	_ = g.AddEdge(depgraph.Edge{From: "sphinxcontrib-applehelp", To: "sphinx"})

	fmt.Println(g.Cycles())
	// Output:
	// [[sphinx sphinxcontrib-applehelp]]
}
