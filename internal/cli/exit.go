package cli

import (
	"fmt"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Exit codes reported for runs that did not finish on their own, following
// the timeout(1) and shell conventions.
const (
	ExitTimedOut  = 124
	ExitCancelled = 130
)

// exitError carries the exit status of a run back to Execute without being
// printed.
type exitError struct {
	code    int
	outcome runtime.Outcome
}

func (e *exitError) Error() string {
	return fmt.Sprintf("command %s", e.outcome)
}

// ExitCode returns the status forkrun exits with.
func (e *exitError) ExitCode() int { return e.code }

func exitCodeFor(outcome runtime.Outcome) int {
	switch outcome.Kind {
	case runtime.OutcomeTimedOut:
		return ExitTimedOut
	case runtime.OutcomeCancelled:
		return ExitCancelled
	default:
		if outcome.ExitCode < 0 {
			return 1
		}
		return outcome.ExitCode
	}
}

// outcomeError returns nil for a successful run and an exitError otherwise.
func outcomeError(outcome runtime.Outcome) error {
	code := exitCodeFor(outcome)
	if code == 0 {
		return nil
	}
	return &exitError{code: code, outcome: outcome}
}
