//go:build unix

package process

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// killProcessGroup sends SIGKILL to every member of the process group led by
// pid. A group that no longer exists is not an error.
func killProcessGroup(pid int) error {
	if pid > math.MaxInt32 || pid < math.MinInt32 {
		return fmt.Errorf("%w: %d", ErrPidOverflow, pid)
	}
	// kill(-1) signals every process we may signal and kill(0) our own group.
	if pid <= 1 {
		return &TerminationError{Pid: pid, Err: errors.New("refusing to signal reserved pid")}
	}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return &TerminationError{Pid: pid, Err: err}
	}
	return nil
}
