package api

import (
	stdcontext "context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Tracker records the runs started by this process while they are in
// flight. It implements Controller.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]RunInfo
	now  func() time.Time
}

var _ Controller = (*Tracker)(nil)

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]RunInfo), now: time.Now}
}

// Track registers stream as active and returns a function removing it again.
func (t *Tracker) Track(label string, spec runtime.CommandSpec, stream runtime.EventStream, describe func(runtime.CommandSpec) string) func() {
	command := spec.String()
	if describe != nil {
		command = describe(spec)
	}
	id := stream.ID()

	t.mu.Lock()
	t.runs[id] = RunInfo{
		ID:      id,
		Label:   label,
		Pid:     stream.Pid(),
		Command: command,
		Started: t.now(),
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.runs, id)
			t.mu.Unlock()
		})
	}
}

// Status reports all active runs ordered by start time.
func (t *Tracker) Status(stdcontext.Context) (*StatusReport, error) {
	now := t.now()
	t.mu.RLock()
	runs := make([]RunInfo, 0, len(t.runs))
	for _, info := range t.runs {
		info.Elapsed = now.Sub(info.Started).Round(time.Millisecond).String()
		runs = append(runs, info)
	}
	t.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Started.Equal(runs[j].Started) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Started.Before(runs[j].Started)
	})
	return &StatusReport{GeneratedAt: now, Runs: runs}, nil
}

// Run reports a single active run.
func (t *Tracker) Run(_ stdcontext.Context, id string) (*RunInfo, error) {
	t.mu.RLock()
	info, ok := t.runs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	info.Elapsed = t.now().Sub(info.Started).Round(time.Millisecond).String()
	return &info, nil
}
