package scheduler

import (
	"sync"
	"time"

	"github.com/neex/neex/internal/progress"
	"github.com/neex/neex/internal/util"
)

// Outcome is what an Executor reports back to the scheduler loop for one
// node.
type Outcome struct {
	Success  bool
	ExitCode int
}

// Executor runs a single task node to completion, observing cancel for
// stop-on-error's "actively cancel the still-running ones" (spec.md §4.9).
// It is supplied by the caller (internal/runner.Runner in production) so
// this package has no direct dependency on process-spawning machinery.
type Executor func(node *Node, cancel <-chan struct{}) Outcome

// Options configures one Run.
type Options struct {
	MaxConcurrency int
	StopOnError    bool
	Subscriber     progress.Subscriber

	// Cancel, when closed, triggers the same stop-on-error path regardless
	// of StopOnError: stop spawning new tasks and actively cancel the ones
	// already running (spec.md §5's "caller → scheduler" cancellation
	// propagation, used for SIGINT during `neex run`).
	Cancel <-chan struct{}
}

// Summary is the aggregate result spec.md §4.9/§6 reports at the end of a
// run.
type Summary struct {
	Total       int
	Success     int
	Failed      int
	Skipped     int
	Interrupted bool
	TotalMs     int64
}

// Run drives graph's streaming execution loop to completion, following
// spec.md §4.9's tick algorithm exactly: while under the concurrency bound,
// pop ready nodes and spawn them; on each completion, transition dependents
// to ready/skipped; terminate when every node has reached a terminal state,
// sweeping any node a cycle left permanently unreachable to skipped.
func Run(graph *Graph, exec Executor, opts Options) Summary {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	sub := opts.Subscriber
	if sub == nil {
		sub = progress.NewBroadcaster()
	}

	start := time.Now()
	sema := util.NewSemaphore(opts.MaxConcurrency)
	externalCancel := opts.Cancel // nil'd out after firing once, so a closed channel never busy-spins the select below

	var mu sync.Mutex
	completions := make(chan string, len(graph.Nodes))
	running := make(map[string]bool)
	completed := 0
	stopped := false
	cancelCh := make(chan struct{})

	interrupted := false
	var readyQueue []*Node
	for _, node := range graph.Nodes {
		if node.Status == StatusReady {
			readyQueue = append(readyQueue, node)
		}
	}

	spawn := func(node *Node) {
		mu.Lock()
		node.Status = StatusRunning
		node.StartAt = time.Now()
		running[node.ID] = true
		mu.Unlock()

		sub.OnEvent(progress.Event{Kind: progress.EventTaskStart, TaskID: node.ID, Command: node.Command})

		go func() {
			defer sema.Release()
			outcome := exec(node, cancelCh)

			mu.Lock()
			node.EndAt = time.Now()
			if outcome.Success {
				node.Status = StatusSuccess
			} else {
				node.Status = StatusFailed
			}
			node.ExitCode = outcome.ExitCode
			delete(running, node.ID)
			mu.Unlock()

			sub.OnEvent(progress.Event{
				Kind: progress.EventTaskEnd, TaskID: node.ID, Success: outcome.Success,
				ExitCode: outcome.ExitCode, DurationMs: node.EndAt.Sub(node.StartAt).Milliseconds(),
			})

			completions <- node.ID
		}()
	}

	total := len(graph.Nodes)
	for completed < total {
		mu.Lock()
		canSpawn := !stopped
		mu.Unlock()

		for canSpawn && len(readyQueue) > 0 && sema.TryAcquire() {
			node := readyQueue[0]
			readyQueue = readyQueue[1:]
			spawn(node)
		}

		mu.Lock()
		nothingRunning := len(running) == 0
		mu.Unlock()

		if nothingRunning && len(readyQueue) == 0 && completed < total {
			// Nothing running, nothing ready, but work remains: either we just
			// stopped on error, or a cycle left some nodes permanently pending.
			mu.Lock()
			for _, node := range graph.Nodes {
				if node.Status == StatusPending || node.Status == StatusReady {
					node.Status = StatusSkipped
					completed++
				}
			}
			mu.Unlock()
			continue
		}

		var finishedID string
		select {
		case finishedID = <-completions:
		case <-externalCancel:
			externalCancel = nil
			mu.Lock()
			if !stopped {
				stopped = true
				interrupted = true
				close(cancelCh)
			}
			mu.Unlock()
			continue
		}
		completed++
		finished := graph.Nodes[finishedID]

		mu.Lock()
		if !finished.Status.terminal() {
			mu.Unlock()
			continue
		}
		if finished.Status == StatusFailed && opts.StopOnError && !stopped {
			stopped = true
			close(cancelCh)
		}
		for _, depID := range finished.Dependents.List() {
			dep := graph.Nodes[depID]
			if dep.Status != StatusPending {
				continue
			}
			anyFailed := false
			allSuccess := true
			for _, upstreamID := range dep.Dependencies.List() {
				switch graph.Nodes[upstreamID].Status {
				case StatusFailed, StatusSkipped:
					anyFailed = true
				case StatusSuccess:
				default:
					allSuccess = false
				}
			}
			if anyFailed {
				dep.Status = StatusSkipped
				completed++
			} else if allSuccess && !stopped {
				dep.Status = StatusReady
				readyQueue = append(readyQueue, dep)
			}
		}
		mu.Unlock()
	}

	summary := Summary{Total: total, Interrupted: interrupted, TotalMs: time.Since(start).Milliseconds()}
	for _, node := range graph.Nodes {
		switch node.Status {
		case StatusSuccess:
			summary.Success++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
	}
	sub.OnEvent(progress.Event{
		Kind: progress.EventSummary, Total: summary.Total, Succeed: summary.Success,
		Failed: summary.Failed, Skipped: summary.Skipped, TotalMs: summary.TotalMs,
	})
	return summary
}

func (s Status) terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}
