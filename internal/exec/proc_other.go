//go:build !unix

package exec

import (
	"os"
	"os/exec"
)

// configureProcessGroup keeps the default behavior: cancellation kills the child only.
func configureProcessGroup(c *exec.Cmd) {}

// killProcessGroup is a no-op: descendants are not tracked on this platform.
func killProcessGroup(c *exec.Cmd) {}

// terminationSignal is not observable on this platform.
func terminationSignal(ps *os.ProcessState) string {
	return ""
}
