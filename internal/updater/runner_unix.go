//go:build !windows

package updater

import (
	"os/exec"
	"syscall"
)

// checkSysProcAttr puts check-mode children in their own process group so a
// timed-out wait can kill the whole tree.
func checkSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// detachSysProcAttr starts install-mode children in a new session so they
// survive the coordinator's exit.
func detachSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
