//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// isolateProcessGroup starts the snippet in its own process group and kills
// the whole group on cancellation, so children spawned by the snippet die too.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
