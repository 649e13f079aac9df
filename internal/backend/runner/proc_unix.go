//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// startGroup runs cmd in its own process group so cancellation reaches the
// helpers it spawns, such as ssh or git-remote-https.
func startGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
