// Package pkggraph implements spec.md §4.2's Project Graph: forward and
// reverse package-dependency edges, a total topological order, and
// transitive-dependents computation, backed by an incrementally-updated
// embedded KV store so unchanged packages are not re-parsed on every run.
//
// Grounded on the teacher's internal/graph.CompleteGraph (forward edges via
// pyr-sh/dag.AcyclicGraph) and internal/context, generalized away from a
// single in-memory build towards the persisted incremental loader spec.md
// describes; the KV choice (bbolt) is an enrichment borrowed from the
// cuemby-warren example repo (see SPEC_FULL.md §4.2).
package pkggraph

import (
	"fmt"
	"sort"

	"github.com/pyr-sh/dag"

	"github.com/neex/neex/internal/workspace"
)

// Graph holds the package dependency DAG: forward edges (a package's own
// internal dependencies) and the derived reverse index (its dependents).
type Graph struct {
	// dag stores the forward edges; dag.AcyclicGraph gives us cycle
	// detection and a topological-order walk for free.
	dag      dag.AcyclicGraph
	forward  map[string][]string
	reverse  map[string]map[string]struct{}
	Packages map[string]*workspace.Package

	// CacheStats records the incremental-load hit ratio (spec.md §4.2).
	CacheStats LoadStats
}

// LoadStats reports how many package nodes were served from the incremental
// store versus freshly re-parsed.
type LoadStats struct {
	Cached  int
	Updated int
}

// Build constructs the Project Graph from a freshly scanned package set,
// without consulting any incremental store. Use Load (incremental.go) for
// the persisted, incremental variant spec.md §4.2 specifies as the normal
// path.
func Build(pkgs map[string]*workspace.Package) *Graph {
	g := &Graph{
		forward:  make(map[string][]string),
		reverse:  make(map[string]map[string]struct{}),
		Packages: pkgs,
	}
	for name := range pkgs {
		g.dag.Add(name)
	}
	for name, pkg := range pkgs {
		g.forward[name] = append([]string(nil), pkg.InternalDeps...)
		for _, dep := range pkg.InternalDeps {
			g.dag.Connect(dag.BasicEdge(name, dep))
			if g.reverse[dep] == nil {
				g.reverse[dep] = make(map[string]struct{})
			}
			g.reverse[dep][name] = struct{}{}
		}
	}
	return g
}

// Dependencies returns pkg's direct internal dependencies.
func (g *Graph) Dependencies(pkg string) []string {
	return append([]string(nil), g.forward[pkg]...)
}

// Dependents returns pkg's direct dependents (packages that depend on it).
func (g *Graph) Dependents(pkg string) []string {
	set := g.reverse[pkg]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasCycle reports whether the forward-edge graph contains a cycle.
func (g *Graph) HasCycle() bool {
	return len(g.dag.Cycles()) > 0
}

// CycleWarning returns a human-readable description of detected cycles, or
// "" if the graph is acyclic. Per spec.md §4.2 a cycle is a warning, never a
// fatal error: the cyclic packages still participate in TopologicalOrder
// with arbitrary relative order.
func (g *Graph) CycleWarning() string {
	cycles := g.dag.Cycles()
	if len(cycles) == 0 {
		return ""
	}
	return fmt.Sprintf("%d dependency cycle(s) detected among packages; execution order within each cycle is arbitrary", len(cycles))
}

// TopologicalOrder returns a total order over all packages consistent with
// the forward edges (dependencies before dependents). Packages that
// participate in a cycle still appear, in an arbitrary but stable order
// relative to each other.
func (g *Graph) TopologicalOrder() []string {
	visited := make(map[string]bool)
	var order []string

	names := make([]string, 0, len(g.Packages))
	for name := range g.Packages {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic traversal seed

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		deps := append([]string(nil), g.forward[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			visit(dep)
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}

// TransitiveDependents computes the least set T such that changed ⊆ T and
// any package whose dependency list intersects T is also in T (spec.md
// §4.2 / §8 property 6), via breadth-first traversal over the reverse map.
func (g *Graph) TransitiveDependents(changed []string) []string {
	visited := make(map[string]bool)
	queue := append([]string(nil), changed...)
	for _, name := range changed {
		visited[name] = true
	}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, dependent := range g.Dependents(next) {
			if !visited[dependent] {
				visited[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	out := make([]string, 0, len(visited))
	for name := range visited {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
