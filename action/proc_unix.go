//go:build !windows

package action

import (
	"os/exec"
	"syscall"
)

// children get their own process group so a terminal ^C aimed at the
// daemon does not reach them
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
