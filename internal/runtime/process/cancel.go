package process

import (
	"context"
	"errors"
	"time"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Never returns a cancellation that does not fire. A run using it completes
// only when the child exits.
func Never() runtime.Cancellation {
	return func(ctx context.Context) (runtime.Outcome, error) {
		<-ctx.Done()
		return runtime.Outcome{}, ctx.Err()
	}
}

// Timeout returns a cancellation that fires TimedOut(d) once d has elapsed. A
// non-positive d never fires.
func Timeout(d time.Duration) runtime.Cancellation {
	if d <= 0 {
		return Never()
	}
	return func(ctx context.Context) (runtime.Outcome, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return runtime.TimedOut(d), nil
		case <-ctx.Done():
			return runtime.Outcome{}, ctx.Err()
		}
	}
}

// FromContext returns a cancellation that fires when parent is done: TimedOut
// with the time spent waiting when its deadline was exceeded, Cancelled
// otherwise.
func FromContext(parent context.Context) runtime.Cancellation {
	return func(ctx context.Context) (runtime.Outcome, error) {
		start := time.Now()
		select {
		case <-parent.Done():
			if errors.Is(parent.Err(), context.DeadlineExceeded) {
				return runtime.TimedOut(time.Since(start)), nil
			}
			return runtime.Cancelled(), nil
		case <-ctx.Done():
			return runtime.Outcome{}, ctx.Err()
		}
	}
}

// FirstOf combines cancellations; the first one to fire wins and the others
// are released. Nil entries are ignored. With no sources it never fires.
func FirstOf(sources ...runtime.Cancellation) runtime.Cancellation {
	active := make([]runtime.Cancellation, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			active = append(active, src)
		}
	}
	switch len(active) {
	case 0:
		return Never()
	case 1:
		return active[0]
	}

	return func(ctx context.Context) (runtime.Outcome, error) {
		raceCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		type result struct {
			outcome runtime.Outcome
			err     error
		}
		// Buffered so losers can return after the winner is picked up.
		ch := make(chan result, len(active))
		for _, src := range active {
			go func(src runtime.Cancellation) {
				outcome, err := src(raceCtx)
				ch <- result{outcome: outcome, err: err}
			}(src)
		}

		// A source only returns early with an error of its own, which
		// ends the race just like firing would.
		res := <-ch
		if res.err != nil && ctx.Err() != nil {
			return runtime.Outcome{}, ctx.Err()
		}
		return res.outcome, res.err
	}
}
