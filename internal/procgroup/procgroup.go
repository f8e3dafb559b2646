// Package procgroup wraps an exec.Cmd so the Runner can signal an entire
// process group rather than a single PID, with a graceful-then-forceful
// kill escalation.
//
// Grounded on the teacher's internal/process/child.go (itself adapted from
// hashicorp/consul-template's child process wrapper), trimmed to the
// subset spec.md §4.8/§5 needs: start in a new process group, send a signal
// to the group, and escalate SIGTERM to SIGKILL after a grace period. The
// restart/timeout/splay machinery the teacher's Child type carries is
// dropped since nothing in this scheduler restarts a running task.
package procgroup

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Group supervises one spawned child process running in its own process
// group.
type Group struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	exitCh  chan error
	logger  hclog.Logger
	started bool
}

// New wraps cmd, which must not yet be started. logger may be nil.
func New(cmd *exec.Cmd, logger hclog.Logger) *Group {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Group{cmd: cmd, logger: logger}
}

// Start spawns the process in a new process group (POSIX Setpgid) and
// begins waiting for it in the background; the returned channel receives
// the wait error exactly once.
func (g *Group) Start() (<-chan error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	setSetpgid(g.cmd)
	if err := g.cmd.Start(); err != nil {
		return nil, err
	}
	g.started = true

	exitCh := make(chan error, 1)
	go func() {
		exitCh <- g.cmd.Wait()
	}()
	g.exitCh = exitCh
	return exitCh, nil
}

// Pid returns the child's pid, or 0 if not started.
func (g *Group) Pid() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.cmd.Process == nil {
		return 0
	}
	return g.cmd.Process.Pid
}

// Signal sends sig (a platform-native os.Signal, e.g. syscall.SIGTERM on
// POSIX) to the whole process group.
func (g *Group) Signal(sig os.Signal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.cmd.Process == nil {
		return nil
	}
	return signalGroup(g.cmd, sig)
}

// Cancel implements spec.md §4.8/§5's cancellation escalation: SIGTERM to
// the process group, wait up to grace, then SIGKILL. It returns once the
// process has exited or the kill has been issued.
func (g *Group) Cancel(grace time.Duration, done <-chan error) {
	if err := g.Signal(terminateSignal); err != nil {
		g.logger.Debug("graceful signal delivery failed", "error", err)
	}
	select {
	case <-done:
		return
	case <-time.After(grace):
	}
	if err := g.Signal(killSignal); err != nil {
		g.logger.Debug("forceful signal delivery failed", "error", err)
	}
	<-done
}

// shellCommand builds the "sh -c <cmd>" invocation spec.md §4.8 specifies,
// run in workDir with extraEnv appended (e.g. FORCE_COLOR).
func shellCommand(command string, workDir string, extraEnv []string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), extraEnv...)
	return cmd
}

// ShellCommand is the exported constructor the Runner uses; it exists as a
// free function (rather than requiring callers to build exec.Cmd
// themselves) so the "sh -c" convention lives in one place.
func ShellCommand(command string, workDir string, extraEnv []string) *exec.Cmd {
	return shellCommand(command, workDir, extraEnv)
}
