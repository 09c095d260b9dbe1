//go:build unix

package exec

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child as the leader of a new process group
// and makes cancellation kill the whole group.
func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		// A negative pid addresses the process group.
		if err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL); err != nil {
			return c.Process.Kill()
		}
		return nil
	}
}

// killProcessGroup kills whatever is left of the child's process group once
// the child has been reaped. A group that is already empty is not an error.
func killProcessGroup(c *exec.Cmd) {
	if c.Process == nil {
		return
	}
	if err := syscall.Kill(-c.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		_ = c.Process.Kill()
	}
}

// terminationSignal returns the name of the signal that ended the process, or "".
func terminationSignal(ps *os.ProcessState) string {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
