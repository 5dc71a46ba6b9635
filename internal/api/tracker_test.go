package api

import (
	stdcontext "context"
	"errors"
	"testing"
	"time"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

type stubStream struct {
	id  string
	pid int
}

func (s stubStream) Next(stdcontext.Context) (runtime.Event, error) { return runtime.Event{}, nil }
func (s stubStream) Close() error                                  { return nil }
func (s stubStream) Pid() int                                      { return s.pid }
func (s stubStream) ID() string                                    { return s.id }

func TestTrackerReportsActiveRuns(t *testing.T) {
	tracker := NewTracker()
	base := time.Unix(1000, 0)
	tracker.now = func() time.Time { return base }

	spec := runtime.CommandSpec{Program: "make", Args: []string{"all"}}
	releaseA := tracker.Track("build", spec, stubStream{id: "a", pid: 10}, nil)
	base = base.Add(time.Second)
	tracker.Track("", spec, stubStream{id: "b", pid: 11}, func(runtime.CommandSpec) string { return "masked" })
	base = base.Add(time.Second)

	report, err := tracker.Status(stdcontext.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(report.Runs))
	}
	first := report.Runs[0]
	if first.ID != "a" || first.Label != "build" || first.Pid != 10 || first.Command != "make all" || first.Elapsed != "2s" {
		t.Fatalf("unexpected first run %+v", first)
	}
	if report.Runs[1].Command != "masked" {
		t.Fatalf("expected describe func to be used, got %q", report.Runs[1].Command)
	}

	releaseA()
	releaseA()
	report, _ = tracker.Status(stdcontext.Background())
	if len(report.Runs) != 1 || report.Runs[0].ID != "b" {
		t.Fatalf("expected only run b to remain, got %+v", report.Runs)
	}
}

func TestTrackerUnknownRun(t *testing.T) {
	tracker := NewTracker()
	if _, err := tracker.Run(stdcontext.Background(), "missing"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
}
