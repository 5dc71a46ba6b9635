package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStreamClosed is returned by EventStream.Next after Close.
var ErrStreamClosed = errors.New("event stream closed")

// OutcomeKind identifies how a run terminated.
type OutcomeKind int

const (
	// OutcomeFinished means the direct child exited on its own.
	OutcomeFinished OutcomeKind = iota
	// OutcomeTimedOut means the run's deadline elapsed first.
	OutcomeTimedOut
	// OutcomeCancelled means an external cancellation fired first.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFinished:
		return "finished"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the terminal disposition of a run. Exactly one is produced per
// run.
type Outcome struct {
	Kind OutcomeKind

	// ExitCode is set for OutcomeFinished. It is -1 when the child was
	// terminated by a signal.
	ExitCode int

	// Elapsed is set for OutcomeTimedOut.
	Elapsed time.Duration
}

// Finished returns the outcome of a child that exited with code.
func Finished(code int) Outcome {
	return Outcome{Kind: OutcomeFinished, ExitCode: code}
}

// TimedOut returns the outcome of a run cut off after elapsed.
func TimedOut(elapsed time.Duration) Outcome {
	return Outcome{Kind: OutcomeTimedOut, Elapsed: elapsed}
}

// Cancelled returns the outcome of an externally cancelled run.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// Success reports whether the child finished with exit code zero.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeFinished && o.ExitCode == 0
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeFinished:
		return fmt.Sprintf("finished(%d)", o.ExitCode)
	case OutcomeTimedOut:
		return fmt.Sprintf("timed_out(%s)", o.Elapsed)
	case OutcomeCancelled:
		return "cancelled"
	default:
		return o.Kind.String()
	}
}

// EventKind tags the payload of an Event.
type EventKind int

const (
	EventStdout EventKind = iota
	EventStderr
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return LogSourceStdout
	case EventStderr:
		return LogSourceStderr
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is a single item of a run's merged stream: a chunk of stdout, a chunk
// of stderr, or the terminal exit.
type Event struct {
	Kind EventKind

	// Data carries the chunk for stdout and stderr events. The slice is
	// owned by the receiver.
	Data []byte

	// Outcome is set for EventExit.
	Outcome Outcome
}

// StdoutEvent wraps a stdout chunk.
func StdoutEvent(data []byte) Event { return Event{Kind: EventStdout, Data: data} }

// StderrEvent wraps a stderr chunk.
func StderrEvent(data []byte) Event { return Event{Kind: EventStderr, Data: data} }

// ExitEvent wraps the terminal outcome.
func ExitEvent(o Outcome) Event { return Event{Kind: EventExit, Outcome: o} }

// Result is a fully drained run.
type Result struct {
	Outcome Outcome
	Stdout  []byte
	Stderr  []byte
}

// Cancellation resolves to a TimedOut or Cancelled outcome when the run should
// be cut short. It must block until then, or until ctx is done, in which case
// it returns ctx.Err(). The engine cancels ctx once the child has exited on its
// own, so a Cancellation that never fires still returns.
type Cancellation func(ctx context.Context) (Outcome, error)

// EventStream is the live, ordered event sequence of one run.
type EventStream interface {
	// Next returns the next event. The exit event is always last; after it
	// Next returns io.EOF. A non-nil error other than io.EOF that is
	// returned before the exit event does not end the stream.
	Next(ctx context.Context) (Event, error)

	// Close abandons the stream, terminating the process group if the run
	// has not finished, and releases its resources.
	Close() error

	// Pid returns the process id of the direct child.
	Pid() int

	// ID returns the unique identifier of the run.
	ID() string
}

// Executor describes a backend capable of running commands.
type Executor interface {
	// Run spawns spec, waits for it and returns its drained output.
	Run(ctx context.Context, spec CommandSpec, cancel Cancellation) (*Result, error)

	// Stream spawns spec and returns its live event stream.
	Stream(ctx context.Context, spec CommandSpec, cancel Cancellation) (EventStream, error)
}
