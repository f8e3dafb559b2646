package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neex/neex/internal/pipeline"
	"github.com/neex/neex/internal/pkggraph"
	"github.com/neex/neex/internal/workspace"
)

func chainPkgs() map[string]*workspace.Package {
	return map[string]*workspace.Package{
		"lib": {Name: "lib", Dir: "/repo/lib", Scripts: map[string]string{"build": "tsc"}},
		"app": {Name: "app", Dir: "/repo/app", Scripts: map[string]string{"build": "next build"}, InternalDeps: []string{"lib"}},
		"cli": {Name: "cli", Dir: "/repo/cli", Scripts: map[string]string{"build": "tsc"}, InternalDeps: []string{"app"}},
	}
}

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	pg := pkggraph.Build(chainPkgs())
	pipe := &pipeline.File{Pipeline: map[string]pipeline.Entry{
		"build": {DependsOn: []string{"^build"}},
	}}
	g, err := Build(pg, pipe, "build")
	require.NoError(t, err)
	return g
}

func TestBuildMarksZeroDependencyNodesReady(t *testing.T) {
	g := buildTestGraph(t)
	assert.Equal(t, StatusReady, g.Nodes["lib:build"].Status)
	assert.Equal(t, StatusPending, g.Nodes["app:build"].Status)
	assert.Equal(t, StatusPending, g.Nodes["cli:build"].Status)
}

func TestRunRespectsTopologicalOrder(t *testing.T) {
	g := buildTestGraph(t)

	var mu sync.Mutex
	var order []string

	exec := func(node *Node, cancel <-chan struct{}) Outcome {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, node.ID)
		mu.Unlock()
		return Outcome{Success: true, ExitCode: 0}
	}

	summary := Run(g, exec, Options{MaxConcurrency: 3})
	require.Equal(t, 3, summary.Success)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["lib:build"], pos["app:build"])
	assert.Less(t, pos["app:build"], pos["cli:build"])
}

func TestRunSkipsDependentsOfAFailedTask(t *testing.T) {
	g := buildTestGraph(t)

	exec := func(node *Node, cancel <-chan struct{}) Outcome {
		if node.ID == "lib:build" {
			return Outcome{Success: false, ExitCode: 1}
		}
		return Outcome{Success: true, ExitCode: 0}
	}

	summary := Run(g, exec, Options{MaxConcurrency: 3})
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Success)
}

func TestRunStopOnErrorCancelsStillRunningTasks(t *testing.T) {
	pg := pkggraph.Build(map[string]*workspace.Package{
		"a": {Name: "a", Dir: "/repo/a", Scripts: map[string]string{"build": "x"}},
		"b": {Name: "b", Dir: "/repo/b", Scripts: map[string]string{"build": "x"}},
	})
	pipe := &pipeline.File{Pipeline: map[string]pipeline.Entry{"build": {}}}
	g, err := Build(pg, pipe, "build")
	require.NoError(t, err)

	var cancelled int32
	exec := func(node *Node, cancel <-chan struct{}) Outcome {
		if node.ID == "a:build" {
			return Outcome{Success: false, ExitCode: 1}
		}
		<-cancel
		atomic.AddInt32(&cancelled, 1)
		return Outcome{Success: false, ExitCode: -1}
	}

	summary := Run(g, exec, Options{MaxConcurrency: 2, StopOnError: true})
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
	assert.Equal(t, 2, summary.Failed)
}

func TestRunExternalCancelInterruptsStillRunningTasks(t *testing.T) {
	pg := pkggraph.Build(map[string]*workspace.Package{
		"a": {Name: "a", Dir: "/repo/a", Scripts: map[string]string{"build": "x"}},
		"b": {Name: "b", Dir: "/repo/b", Scripts: map[string]string{"build": "x"}},
	})
	pipe := &pipeline.File{Pipeline: map[string]pipeline.Entry{"build": {}}}
	g, err := Build(pg, pipe, "build")
	require.NoError(t, err)

	extCancel := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	exec := func(node *Node, cancel <-chan struct{}) Outcome {
		started.Done()
		<-cancel
		return Outcome{Success: false, ExitCode: -1}
	}

	go func() {
		started.Wait()
		close(extCancel)
	}()

	summary := Run(g, exec, Options{MaxConcurrency: 2, Cancel: extCancel})
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Failed)
}

func TestRunHonorsMaxConcurrency(t *testing.T) {
	pkgs := map[string]*workspace.Package{}
	for _, name := range []string{"a", "b", "c", "d"} {
		pkgs[name] = &workspace.Package{Name: name, Dir: "/repo/" + name, Scripts: map[string]string{"build": "x"}}
	}
	pg := pkggraph.Build(pkgs)
	pipe := &pipeline.File{Pipeline: map[string]pipeline.Entry{"build": {}}}
	g, err := Build(pg, pipe, "build")
	require.NoError(t, err)

	var mu sync.Mutex
	current, max := 0, 0
	exec := func(node *Node, cancel <-chan struct{}) Outcome {
		mu.Lock()
		current++
		if current > max {
			max = current
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
		return Outcome{Success: true}
	}

	Run(g, exec, Options{MaxConcurrency: 2})
	assert.LessOrEqual(t, max, 2)
}
