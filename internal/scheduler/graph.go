package scheduler

import (
	"fmt"

	"github.com/pyr-sh/dag"

	"github.com/neex/neex/internal/pipeline"
	"github.com/neex/neex/internal/pkggraph"
	"github.com/neex/neex/internal/util"
	"github.com/neex/neex/internal/workspace"
)

// Graph is a built task graph: every node plus a pyr-sh/dag.AcyclicGraph
// used purely for cycle detection, mirroring the teacher's separation of
// "edge storage" from "execution".
type Graph struct {
	Nodes map[string]*Node
	dag   dag.AcyclicGraph
}

// Build constructs the task graph for taskName across every package in
// pkgs that declares it, per spec.md §4.9's edge rules:
//   - a `^<task>` dependsOn entry adds an edge from `(dep, <task>)` for
//     every internal dependency `dep` that also declares `<task>`
//   - a plain `<task'>` dependsOn entry adds an edge from `(samePackage,
//     <task'>)` when that package declares it
//
// Nodes with zero dependencies start StatusReady; all others StatusPending.
func Build(pg *pkggraph.Graph, pipe *pipeline.File, taskName string) (*Graph, error) {
	entry, ok := pipe.Pipeline[taskName]
	if !ok {
		return nil, fmt.Errorf("no pipeline entry for task %q", taskName)
	}

	g := &Graph{Nodes: make(map[string]*Node)}

	for name, pkg := range pg.Packages {
		cmd, declares := pkg.Scripts[taskName]
		if !declares {
			continue
		}
		id := util.GetTaskID(name, taskName)
		node := newNode(id, name, taskName, cmd, pkg.Dir)
		g.Nodes[id] = node
		g.dag.Add(id)
	}

	for name, node := range g.Nodes {
		for _, dep := range entry.DependsOn {
			depTask, isTopo := util.StripTopoMarker(dep)
			if isTopo {
				for _, upstream := range pg.Dependencies(node.PackageName) {
					upstreamPkg, ok := pg.Packages[upstream]
					if !ok {
						continue
					}
					if _, declares := upstreamPkg.Scripts[depTask]; !declares {
						continue
					}
					fromID := util.GetTaskID(upstream, depTask)
					fromNode, ok := g.Nodes[fromID]
					if !ok {
						continue
					}
					connect(g, fromNode, node)
				}
			} else {
				fromID := util.GetTaskID(node.PackageName, depTask)
				fromNode, ok := g.Nodes[fromID]
				if !ok {
					continue
				}
				connect(g, fromNode, node)
			}
		}
		_ = name
	}

	for _, node := range g.Nodes {
		if node.Dependencies.Len() == 0 {
			node.Status = StatusReady
		}
	}

	return g, nil
}

func connect(g *Graph, from, to *Node) {
	to.Dependencies.Add(from.ID)
	from.Dependents.Add(to.ID)
	g.dag.Connect(dag.BasicEdge(to.ID, from.ID))
}

// HasCycle reports whether the constructed graph contains a cycle; per
// spec.md §4.9 this is a warning, never fatal — cyclic nodes remain
// StatusPending forever and are swept to StatusSkipped when the scheduler
// loop detects it can make no further progress.
func (g *Graph) HasCycle() bool {
	return len(g.dag.Cycles()) > 0
}
