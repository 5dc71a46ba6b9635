//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCmdSysProcAttr places the child in a new process group whose id is
// the child's pid, so the child and everything it spawns can be killed as a
// unit.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pgid = 0
}

func isTextFileBusy(err error) bool {
	return errors.Is(err, unix.ETXTBSY)
}
