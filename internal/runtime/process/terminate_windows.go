//go:build windows

package process

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sys/windows"
)

// killProcessGroup forcefully terminates the process identified by pid. Only
// the process itself is terminated; Windows has no group signal to rely on.
func killProcessGroup(pid int) error {
	if pid < 0 || uint64(pid) > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrPidOverflow, pid)
	}
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		// The process is gone.
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return nil
		}
		return &TerminationError{Pid: pid, Err: err}
	}
	defer windows.CloseHandle(handle)

	if err := windows.TerminateProcess(handle, 1); err != nil {
		return &TerminationError{Pid: pid, Err: err}
	}
	return nil
}
