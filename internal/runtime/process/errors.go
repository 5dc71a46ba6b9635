package process

import (
	"errors"
	"fmt"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

var (
	// ErrPipeSetup is returned when a command's stdout or stderr is not
	// available for the engine to pipe.
	ErrPipeSetup = errors.New("process stdio is not piped")

	// ErrProtocolViolation is returned when an event stream ends without an
	// exit event.
	ErrProtocolViolation = errors.New("stream did not yield an exit event")

	// ErrPidOverflow is returned when a process id does not fit the width
	// expected by the platform's signal API.
	ErrPidOverflow = errors.New("process id does not fit the platform pid type")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = runtime.ErrStreamClosed
)

// SpawnError reports that the OS refused to create the process.
type SpawnError struct {
	Program  string
	Attempts int
	Err      error
}

func (e *SpawnError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("failed to start command %s after %d attempts: %v", e.Program, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to start command %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TerminationError reports that a kill was attempted against a live process
// and failed.
type TerminationError struct {
	Pid int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("failed to kill process %d: %v", e.Pid, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }
