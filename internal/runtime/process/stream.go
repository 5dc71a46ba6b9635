package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Paintersrp/forkrun/internal/metrics"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

type chunk struct {
	kind runtime.EventKind
	data []byte
	err  error
}

type statusResult struct {
	outcome runtime.Outcome
	err     error
}

type item struct {
	event    runtime.Event
	err      error
	terminal bool
}

// Stream is the live event stream of one run. Events are produced by a
// coordinator goroutine that merges the two pipe readers with the race between
// the child's exit and the run's cancellation; the exit event is emitted only
// after both pipes are drained and the outcome is known.
//
// Next must be called from a single goroutine. Close may be called from any
// goroutine.
type Stream struct {
	id     string
	child  *Child
	logger zerolog.Logger
	start  time.Time

	readers [2]interruptibleReader
	items   chan item
	abandon chan struct{}

	resolved  atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	finished bool
}

var _ runtime.EventStream = (*Stream)(nil)

type streamConfig struct {
	drainTimeout time.Duration
	logger       zerolog.Logger
}

// StreamEvents takes over child's pipes and returns its event stream. The run
// ends when the child exits or cancel fires, whichever happens first; a nil
// cancel never fires.
func StreamEvents(child *Child, cancel runtime.Cancellation) (*Stream, error) {
	return streamEvents(child, cancel, streamConfig{drainTimeout: DefaultDrainTimeout, logger: zerolog.Nop()})
}

func streamEvents(child *Child, cancel runtime.Cancellation, cfg streamConfig) (*Stream, error) {
	stdout, stderr, err := child.takePipes()
	if err != nil {
		return nil, err
	}
	if cancel == nil {
		cancel = Never()
	}

	id := uuid.NewString()
	s := &Stream{
		id:      id,
		child:   child,
		logger:  cfg.logger.With().Str("run_id", id).Int("pid", child.pid).Logger(),
		start:   time.Now(),
		items:   make(chan item),
		abandon: make(chan struct{}),
	}
	s.readers = [2]interruptibleReader{
		newInterruptibleReader(stdout, cfg.drainTimeout),
		newInterruptibleReader(stderr, cfg.drainTimeout),
	}

	chunks := make(chan chunk)
	var wg sync.WaitGroup
	wg.Add(2)
	go s.pump(s.readers[0], runtime.EventStdout, chunks, &wg)
	go s.pump(s.readers[1], runtime.EventStderr, chunks, &wg)
	go func() {
		wg.Wait()
		close(chunks)
	}()

	status := make(chan statusResult, 1)
	go s.watchStatus(cancel, status)
	go s.coordinate(chunks, status)

	return s, nil
}

// ID returns the unique identifier of the run.
func (s *Stream) ID() string { return s.id }

// Pid returns the process id of the direct child.
func (s *Stream) Pid() int { return s.child.pid }

// Next returns the next event of the run. After the exit event it returns
// io.EOF, and after Close it returns ErrStreamClosed. A read error on one of
// the pipes is returned without ending the stream; a failure to observe or
// terminate the child takes the place of the exit event.
func (s *Stream) Next(ctx context.Context) (runtime.Event, error) {
	if s.finished {
		return runtime.Event{}, io.EOF
	}
	if s.closed.Load() {
		return runtime.Event{}, ErrStreamClosed
	}

	select {
	case it, ok := <-s.items:
		if !ok {
			if s.closed.Load() {
				return runtime.Event{}, ErrStreamClosed
			}
			s.finished = true
			return runtime.Event{}, io.EOF
		}
		if it.terminal {
			s.finished = true
		}
		return it.event, it.err
	case <-ctx.Done():
		return runtime.Event{}, ctx.Err()
	}
}

// Close abandons the stream. If the run has not resolved yet, the process
// group is killed. Close and a firing cancellation race for resolved, so the
// group is killed by at most one of them.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.abandon)
		if s.resolved.CompareAndSwap(false, true) {
			s.logger.Info().Msg("stream abandoned, killing process group")
			s.closeErr = s.child.Terminate()
		}
		for _, r := range s.readers {
			r.Interrupt()
		}
	})
	return s.closeErr
}

func (s *Stream) pump(r interruptibleReader, kind runtime.EventKind, out chan<- chunk, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !s.deliver(out, chunk{kind: kind, data: data}) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.deliver(out, chunk{kind: kind, err: fmt.Errorf("read %s of process %d: %w", kind, s.child.pid, err)})
			}
			return
		}
	}
}

func (s *Stream) deliver(out chan<- chunk, c chunk) bool {
	select {
	case out <- c:
		return true
	case <-s.abandon:
		return false
	}
}

// watchStatus races the child's exit against cancel. When cancel wins, the
// process group is killed before the synthetic outcome is published and the
// real exit code is discarded.
func (s *Stream) watchStatus(cancel runtime.Cancellation, out chan<- statusResult) {
	exited := make(chan statusResult, 1)
	go func() {
		code, err := s.child.wait()
		if err != nil {
			exited <- statusResult{err: fmt.Errorf("wait for process %d: %w", s.child.pid, err)}
			return
		}
		exited <- statusResult{outcome: runtime.Finished(code)}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	fired := make(chan statusResult, 1)
	go func() {
		outcome, err := cancel(ctx)
		fired <- statusResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-exited:
		s.resolved.Store(true)
		out <- res
	case res := <-fired:
		out <- s.terminate(res)
	}
}

func (s *Stream) terminate(res statusResult) statusResult {
	if res.err == nil && res.outcome.Kind == runtime.OutcomeFinished {
		res.outcome = runtime.Cancelled()
	}

	reason := res.outcome.Kind.String()
	if res.err != nil {
		reason = "cancellation error"
	}

	// Close got there first and already killed the group.
	if !s.resolved.CompareAndSwap(false, true) {
		if res.err != nil {
			return statusResult{err: fmt.Errorf("cancellation of process %d failed: %w", s.child.pid, res.err)}
		}
		return res
	}
	s.logger.Info().Str("reason", reason).Msg("killing process group")

	if err := s.child.Terminate(); err != nil {
		metrics.ObserveTermination(metrics.ResultError)
		return statusResult{err: fmt.Errorf("failed to terminate child after %s: %w", reason, err)}
	}
	metrics.ObserveTermination(metrics.ResultOK)

	if res.err != nil {
		return statusResult{err: fmt.Errorf("cancellation of process %d failed: %w", s.child.pid, res.err)}
	}
	return res
}

// coordinate forwards chunks until both pipes are done, then emits the
// terminal item. The outcome may arrive at any point; once it does the
// readers are told to stop waiting for data nobody is going to write.
func (s *Stream) coordinate(chunks <-chan chunk, status <-chan statusResult) {
	defer close(s.items)

	var pending *statusResult
	for chunks != nil || pending == nil {
		select {
		case res := <-status:
			pending = &res
			status = nil
			for _, r := range s.readers {
				r.Interrupt()
			}
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			it := item{err: c.err}
			if c.err == nil {
				it.event = runtime.Event{Kind: c.kind, Data: c.data}
				metrics.AddOutputBytes(c.kind.String(), len(c.data))
			}
			if !s.send(it) {
				return
			}
		case <-s.abandon:
			return
		}
	}

	elapsed := time.Since(s.start)
	final := item{terminal: true}
	if pending.err != nil {
		final.err = pending.err
		metrics.ObserveRun(metrics.ResultError, elapsed)
		s.logger.Debug().Err(pending.err).Dur("elapsed", elapsed).Msg("run failed")
	} else {
		final.event = runtime.ExitEvent(pending.outcome)
		metrics.ObserveRun(pending.outcome.Kind.String(), elapsed)
		s.logger.Debug().Stringer("outcome", pending.outcome).Dur("elapsed", elapsed).Msg("run finished")
	}
	s.send(final)
}

func (s *Stream) send(it item) bool {
	select {
	case s.items <- it:
		return true
	case <-s.abandon:
		return false
	}
}
