//go:build !windows
// +build !windows

package procgroup

import (
	"os"
	"os/exec"
	"syscall"
)

// terminateSignal and killSignal are the graceful and forceful signals
// spec.md §4.8/§5 names (SIGTERM, then SIGKILL after the grace period).
var (
	terminateSignal os.Signal = syscall.SIGTERM
	killSignal      os.Signal = syscall.SIGKILL
)

func setSetpgid(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return nil
	}
	// A negative pid targets the process group created by Setpgid.
	return syscall.Kill(-cmd.Process.Pid, s)
}
