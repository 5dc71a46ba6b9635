package logmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Entry is a single framed log line of a run, or a record synthesized by the
// mux itself.
type Entry struct {
	Timestamp time.Time
	Run       string
	RunID     string
	Source    string
	Level     string
	Message   string

	// Outcome is set on the record closing a run.
	Outcome *runtime.Outcome
}

// Mux fans in the event streams of one or more runs, frames their output into
// lines and delivers them via a bounded channel. When downstream consumers
// cannot keep up and the output buffer would overflow, the mux drops lines
// and later emits a synthesized record carrying the number of discarded
// entries. Records closing a run are never dropped.
type Mux struct {
	out          chan Entry
	backpressure bool
	maxLine      int

	mu     sync.Mutex
	drops  map[string]dropRecord
	inputs sync.WaitGroup
}

type dropRecord struct {
	count int
	runID string
}

// Option configures a Mux.
type Option func(*Mux)

// WithBackpressure makes the mux block on a full output instead of dropping
// lines.
func WithBackpressure() Option {
	return func(m *Mux) {
		m.backpressure = true
	}
}

// WithMaxLineBytes bounds how much of an unterminated line is buffered before
// it is emitted as is.
func WithMaxLineBytes(n int) Option {
	return func(m *Mux) {
		if n > 0 {
			m.maxLine = n
		}
	}
}

const defaultMaxLineBytes = 64 * 1024

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int, opts ...Option) *Mux {
	if size <= 0 {
		size = 1
	}
	m := &Mux{
		out:     make(chan Entry, size),
		maxLine: defaultMaxLineBytes,
		drops:   make(map[string]dropRecord),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Output exposes the muxed entry channel.
func (m *Mux) Output() <-chan Entry {
	return m.out
}

// Add registers the event stream of a run under the given label. The mux
// consumes the stream until it ends or ctx is done. An empty label falls back
// to the stream's id.
func (m *Mux) Add(ctx context.Context, run string, stream runtime.EventStream) {
	if stream == nil {
		return
	}
	if run == "" {
		run = stream.ID()
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		m.consume(ctx, run, stream)
	}()
}

// Close waits for all streams to be drained, emits any pending drop metadata,
// and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) consume(ctx context.Context, run string, stream runtime.EventStream) {
	id := stream.ID()
	lines := newFramer(m.maxLine)

	emitLines := func(source string, out []string) {
		for _, line := range out {
			m.deliver(newEntry(run, id, source, line))
		}
	}
	flush := func() {
		emitLines(runtime.LogSourceStdout, lines.flush(runtime.LogSourceStdout))
		emitLines(runtime.LogSourceStderr, lines.flush(runtime.LogSourceStderr))
	}

	for {
		evt, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			flush()
			return
		}
		if err != nil {
			entry := newEntry(run, id, runtime.LogSourceSystem, err.Error())
			entry.Level = "error"
			if ctx.Err() != nil || errors.Is(err, runtime.ErrStreamClosed) {
				flush()
				m.deliverSystem(entry)
				return
			}
			m.deliverSystem(entry)
			continue
		}

		switch evt.Kind {
		case runtime.EventStdout, runtime.EventStderr:
			source := evt.Kind.String()
			emitLines(source, lines.push(source, evt.Data))
		case runtime.EventExit:
			flush()
			outcome := evt.Outcome
			entry := newEntry(run, id, runtime.LogSourceSystem, "exit "+outcome.String())
			if !outcome.Success() {
				entry.Level = "warn"
			}
			entry.Outcome = &outcome
			m.deliverSystem(entry)
		}
	}
}

func (m *Mux) deliver(entry Entry) {
	if m.backpressure {
		m.blockingSend(entry)
		return
	}
	if !m.flushPending(entry.Run) {
		m.recordDrop(entry.Run, entry.RunID, 1)
		return
	}
	if m.trySend(entry) {
		return
	}
	m.recordDrop(entry.Run, entry.RunID, 1)
}

// deliverSystem never drops: pending drop metadata for the run goes out
// first so the counts precede the record.
func (m *Mux) deliverSystem(entry Entry) {
	if rec := m.takeDrops(entry.Run); rec.count > 0 {
		m.blockingSend(synthesizeDropEntry(entry.Run, rec))
	}
	m.blockingSend(entry)
}

func (m *Mux) flushPending(run string) bool {
	for {
		rec := m.takeDrops(run)
		if rec.count == 0 {
			return true
		}
		if m.trySend(synthesizeDropEntry(run, rec)) {
			continue
		}
		m.recordDrop(run, rec.runID, rec.count)
		return false
	}
}

func (m *Mux) takeDrops(run string) dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[run]
	if rec.count != 0 {
		delete(m.drops, run)
	}
	return rec
}

func (m *Mux) recordDrop(run, runID string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[run]
	rec.count += count
	if runID != "" {
		rec.runID = runID
	}
	m.drops[run] = rec
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]dropRecord)
	m.mu.Unlock()

	for run, rec := range pending {
		if rec.count == 0 {
			continue
		}
		m.blockingSend(synthesizeDropEntry(run, rec))
	}
}

func (m *Mux) trySend(entry Entry) bool {
	select {
	case m.out <- entry:
		return true
	default:
		return false
	}
}

func (m *Mux) blockingSend(entry Entry) {
	m.out <- entry
}

func newEntry(run, runID, source, message string) Entry {
	level := "info"
	if source == runtime.LogSourceStderr {
		level = "warn"
	}
	return Entry{
		Timestamp: time.Now(),
		Run:       run,
		RunID:     runID,
		Source:    source,
		Level:     level,
		Message:   message,
	}
}

func synthesizeDropEntry(run string, rec dropRecord) Entry {
	entry := newEntry(run, rec.runID, runtime.LogSourceSystem, fmt.Sprintf("dropped=%d", rec.count))
	entry.Level = "warn"
	return entry
}
