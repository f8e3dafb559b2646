package cmd

import (
	"fmt"
	"os"

	"github.com/neex/neex/internal/fingerprint"
	"github.com/neex/neex/internal/hashing"
	"github.com/neex/neex/internal/progress"
	"github.com/neex/neex/internal/runner"
	"github.com/neex/neex/internal/scheduler"
	"github.com/neex/neex/internal/util"
)

// RunTask builds and drives the Task Graph for taskName across every
// package in pkgNames (or every package that declares it, if pkgNames is
// empty), wiring the scheduler to the App's Runner exactly as spec.md §4.9
// describes.
func (a *App) RunTask(taskName string, pkgNames []string, stopOnError bool, cancel <-chan struct{}, sub progress.Subscriber) (scheduler.Summary, error) {
	g, err := scheduler.Build(a.ProjectGraph, a.Pipeline, taskName)
	if err != nil {
		return scheduler.Summary{}, err
	}

	if len(pkgNames) > 0 {
		filterTaskGraph(g, pkgNames)
	}

	exec := func(node *scheduler.Node, cancel <-chan struct{}) scheduler.Outcome {
		task, buildErr := a.buildRunnerTask(node)
		if buildErr != nil {
			a.Logger.Error("failed to prepare task", "task", node.ID, "error", buildErr)
			return scheduler.Outcome{Success: false, ExitCode: -1}
		}
		prefixLabel := node.ID
		if !a.Config.NoColor {
			prefixLabel = a.Colors.PrefixWithColor(node.PackageName, node.ID)
		}
		prefixOut := progress.NewPrefixWriter(os.Stdout, prefixLabel)
		prefixErr := progress.NewPrefixWriter(os.Stderr, prefixLabel)
		defer prefixOut.Close()
		defer prefixErr.Close()

		result := a.Runner.Run(task, prefixOut, prefixErr, cancel)
		return scheduler.Outcome{Success: result.Success, ExitCode: result.ExitCode}
	}

	maxParallel := a.Config.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	summary := scheduler.Run(g, exec, scheduler.Options{
		MaxConcurrency: maxParallel,
		StopOnError:    stopOnError,
		Subscriber:     sub,
		Cancel:         cancel,
	})
	return summary, nil
}

// filterTaskGraph removes every node whose package is not in keep (the
// dependencies of kept packages are not added back), leaving the surviving
// nodes' edges intact only where the node at the other end survives.
func filterTaskGraph(g *scheduler.Graph, keep []string) {
	keepSet := util.NewSet()
	for _, name := range keep {
		keepSet.Add(name)
	}
	for id, node := range g.Nodes {
		if !keepSet.Has(node.PackageName) {
			delete(g.Nodes, id)
		}
	}
	for _, node := range g.Nodes {
		for _, depID := range node.Dependencies.List() {
			if _, ok := g.Nodes[depID]; !ok {
				node.Dependencies.Delete(depID)
			}
		}
		for _, depID := range node.Dependents.List() {
			if _, ok := g.Nodes[depID]; !ok {
				node.Dependents.Delete(depID)
			}
		}
	}
}

// buildRunnerTask resolves one task node into a runner.Task, computing its
// fingerprint inputs from the Project Graph's package hashes.
func (a *App) buildRunnerTask(node *scheduler.Node) (runner.Task, error) {
	pkg, ok := a.Packages[node.PackageName]
	if !ok {
		return runner.Task{}, fmt.Errorf("unknown package %q", node.PackageName)
	}
	e := a.Pipeline.Pipeline[node.TaskName]

	pkgHash, err := hashing.PackageHash(a.Hasher, pkg.Dir)
	if err != nil {
		return runner.Task{}, err
	}

	depHashes := make(map[string]uint64, len(pkg.InternalDeps))
	for _, dep := range pkg.InternalDeps {
		depPkg, ok := a.Packages[dep]
		if !ok {
			continue
		}
		h, hashErr := hashing.PackageHash(a.Hasher, depPkg.Dir)
		if hashErr != nil {
			return runner.Task{}, hashErr
		}
		depHashes[dep] = h
	}

	return runner.Task{
		ID:          node.ID,
		PackageName: node.PackageName,
		TaskName:    node.TaskName,
		Command:     node.Command,
		WorkDir:     node.WorkDir,
		Cacheable:   e.CacheEnabled() && !e.Persistent,
		Persistent:  e.Persistent,
		Outputs:     e.SortedOutputs(),
		ForceColor:  !a.Config.NoColor,
		Fingerprint: fingerprint.Inputs{
			PackageName:      node.PackageName,
			PackageHash:      pkgHash,
			DependencyHashes: depHashes,
			Command:          node.Command,
			TaskName:         node.TaskName,
			InputGlobs:  e.SortedInputs(),
			OutputGlobs: e.SortedOutputs(),
		},
	}, nil
}
