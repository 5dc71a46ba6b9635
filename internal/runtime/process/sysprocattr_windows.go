//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// configureCmdSysProcAttr starts the child in a new process group so console
// control events aimed at the parent are not delivered to it.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// ETXTBSY does not exist on Windows.
func isTextFileBusy(error) bool {
	return false
}
