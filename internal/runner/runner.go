// Package runner implements spec.md §4.8: the single-task executor that
// consults the Artifact Cache, spawns the task's shell command on a miss,
// streams its output, and saves a fresh artifact on success.
//
// Grounded on the teacher's internal/runcache/runcache.go (the
// restore-then-spawn-then-save shape) and internal/process (via
// internal/procgroup) for the actual spawn/signal mechanics.
package runner

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/neex/neex/internal/artifactcache"
	"github.com/neex/neex/internal/fingerprint"
	"github.com/neex/neex/internal/procgroup"
	"github.com/neex/neex/internal/progress"
)

// serverPortPattern and serverURLPattern are spec.md §6's server-mode
// signal regexes, scanned against every line of a task's stdout.
var (
	serverPortPattern = regexp.MustCompile(`(?i)listening on (?:port |http://localhost:|https://localhost:)(\d+)`)
	serverURLPattern  = regexp.MustCompile(`(?i)(https?://localhost:[0-9]+(?:/[^\s]*)?)`)
)

// ServerInfo captures a detected long-running server's address, populated
// from the Runner's stdout scanner.
type ServerInfo struct {
	Port int
	URL  string
}

// Task bundles everything the Runner needs to execute one (package, task)
// invocation.
type Task struct {
	ID          string // "pkg:task", for progress events
	PackageName string
	TaskName    string
	Command     string
	WorkDir     string
	Cacheable   bool
	Persistent  bool
	Outputs     []string
	Fingerprint fingerprint.Inputs
	ForceColor  bool
}

// Result is spec.md §4.8's return record.
type Result struct {
	TaskID     string
	Success    bool
	ExitCode   int
	Duration   time.Duration
	Cached     bool
	ServerInfo *ServerInfo
}

// Runner executes tasks against a shared cache and logger.
type Runner struct {
	Cache      *artifactcache.Cache
	Logger     hclog.Logger
	Subscriber progress.Subscriber
	GracePeriod time.Duration
}

// New constructs a Runner. logger and subscriber may be nil.
func New(cache *artifactcache.Cache, logger hclog.Logger, subscriber progress.Subscriber) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if subscriber == nil {
		subscriber = progress.NewBroadcaster()
	}
	return &Runner{Cache: cache, Logger: logger, Subscriber: subscriber, GracePeriod: 3 * time.Second}
}

func (r *Runner) emit(e progress.Event) {
	if r.Subscriber != nil {
		r.Subscriber.OnEvent(e)
	}
}

// Run executes task, following spec.md §4.8's algorithm exactly: compute a
// fingerprint (if cacheable), try a cache restore, and on miss spawn the
// command, stream its output, and save the artifact on success.
//
// cancel is closed to request cancellation (spec.md §5): the Runner sends
// SIGTERM to the process group, waits GracePeriod, then SIGKILL.
func (r *Runner) Run(task Task, stdout, stderr io.Writer, cancel <-chan struct{}) Result {
	var fp string
	if task.Cacheable {
		fp = fingerprint.Compute(task.Fingerprint)
	}

	r.emit(progress.Event{Kind: progress.EventTaskStart, TaskID: task.ID, Command: task.Command})

	if fp != "" {
		if result, hit := r.tryCacheHit(task, fp, stdout, stderr); hit {
			return result
		}
	}

	return r.execute(task, fp, stdout, stderr, cancel)
}

// tryCacheHit attempts a cache restore; cache errors degrade to a miss
// rather than propagating (spec.md §4.8's "error isolation").
func (r *Runner) tryCacheHit(task Task, fp string, stdout, stderr io.Writer) (Result, bool) {
	if r.Cache == nil {
		return Result{}, false
	}
	restoreResult, err := r.Cache.Restore(fp, task.WorkDir, stdout, stderr)
	if err != nil {
		r.Logger.Warn("cache restore failed, falling back to execution", "task", task.ID, "error", err)
		return Result{}, false
	}
	if !restoreResult.Hit {
		return Result{}, false
	}

	duration := time.Duration(restoreResult.Metadata.DurationMs) * time.Millisecond
	r.emit(progress.Event{
		Kind: progress.EventTaskEnd, TaskID: task.ID,
		Success: restoreResult.Metadata.ExitCode == 0, ExitCode: restoreResult.Metadata.ExitCode,
		DurationMs: restoreResult.Metadata.DurationMs, Cached: true,
	})
	return Result{
		TaskID: task.ID, Success: restoreResult.Metadata.ExitCode == 0,
		ExitCode: restoreResult.Metadata.ExitCode, Duration: duration, Cached: true,
	}, true
}

func (r *Runner) execute(task Task, fp string, liveStdout, liveStderr io.Writer, cancel <-chan struct{}) Result {
	var extraEnv []string
	if task.ForceColor {
		extraEnv = append(extraEnv, "FORCE_COLOR=1")
	}
	cmd := procgroup.ShellCommand(task.Command, task.WorkDir, extraEnv)

	var capturedStdout, capturedStderr bytes.Buffer
	var serverInfo *ServerInfo
	var mu sync.Mutex

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return r.fail(task, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return r.fail(task, err)
	}

	group := procgroup.New(cmd, r.Logger)
	start := time.Now()
	exitCh, err := group.Start()
	if err != nil {
		return r.fail(task, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.streamOutput(&wg, stdoutPipe, liveStdout, &capturedStdout, task.ID, progress.EventTaskStdout, func(line string) {
		if info := detectServerInfo(line); info != nil {
			mu.Lock()
			serverInfo = info
			mu.Unlock()
		}
	})
	go r.streamOutput(&wg, stderrPipe, liveStderr, &capturedStderr, task.ID, progress.EventTaskStderr, nil)

	var exitErr error
	select {
	case exitErr = <-exitCh:
	case <-cancel:
		// exitCh delivers its value once; relay it so both Cancel and this
		// function observe the exit.
		exited := make(chan error)
		go func() { exitErr = <-exitCh; close(exited) }()
		group.Cancel(r.GracePeriod, exited)
		<-exited
	}
	wg.Wait()
	duration := time.Since(start)

	exitCode := exitCodeOf(exitErr)
	success := exitCode == 0

	if success && task.Cacheable && fp != "" && r.Cache != nil {
		meta := artifactcache.Metadata{
			ExitCode:    exitCode,
			DurationMs:  duration.Milliseconds(),
			TimestampMs: start.UnixMilli(),
			Stdout:      capturedStdout.String(),
			Stderr:      capturedStderr.String(),
		}
		if saveErr := r.Cache.Save(fp, task.WorkDir, task.Outputs, meta); saveErr != nil {
			r.Logger.Warn("cache save failed", "task", task.ID, "error", saveErr)
		}
	}

	r.emit(progress.Event{
		Kind: progress.EventTaskEnd, TaskID: task.ID, Success: success,
		ExitCode: exitCode, DurationMs: duration.Milliseconds(), Cached: false,
	})

	return Result{
		TaskID: task.ID, Success: success, ExitCode: exitCode,
		Duration: duration, Cached: false, ServerInfo: serverInfo,
	}
}

func (r *Runner) fail(task Task, err error) Result {
	r.Logger.Error("failed to start task", "task", task.ID, "error", err)
	r.emit(progress.Event{Kind: progress.EventTaskEnd, TaskID: task.ID, Success: false, ExitCode: -1})
	return Result{TaskID: task.ID, Success: false, ExitCode: -1}
}

// streamOutput line-buffers pipe into capture and, if live is non-nil,
// forwards to it too; onLine (when set) is called per emitted line for
// server-signal detection (spec.md §4.8 step 4).
func (r *Runner) streamOutput(wg *sync.WaitGroup, pipe io.Reader, live io.Writer, capture *bytes.Buffer, taskID string, kind progress.EventKind, onLine func(string)) {
	defer wg.Done()
	buf := make([]byte, 4096)
	var lineBuf bytes.Buffer
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			capture.Write(chunk)
			if live != nil {
				_, _ = live.Write(chunk)
			}
			r.emit(progress.Event{Kind: kind, TaskID: taskID, Chunk: string(chunk)})
			if onLine != nil {
				lineBuf.Write(chunk)
				for {
					line, readErr := lineBuf.ReadString('\n')
					if line != "" {
						onLine(line)
					}
					if readErr != nil {
						break
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func detectServerInfo(line string) *ServerInfo {
	info := &ServerInfo{}
	found := false
	if m := serverPortPattern.FindStringSubmatch(line); m != nil {
		fmt.Sscanf(m[1], "%d", &info.Port)
		found = true
	}
	if m := serverURLPattern.FindStringSubmatch(line); m != nil {
		info.URL = m[1]
		found = true
	}
	if !found {
		return nil
	}
	return info
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	return 1
}
