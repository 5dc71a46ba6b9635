package process

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

func init() {
	runtime.Register("process", func(settings runtime.Settings) runtime.Executor {
		opts := []Option{WithLogger(settings.Logger)}
		if settings.SpawnDelay != nil {
			opts = append(opts, WithSpawnDelay(SleepDelay(*settings.SpawnDelay)))
		}
		if settings.MaxSpawnRetries != nil {
			opts = append(opts, WithMaxSpawnRetries(*settings.MaxSpawnRetries))
		}
		if settings.DrainTimeout > 0 {
			opts = append(opts, WithDrainTimeout(settings.DrainTimeout))
		}
		return New(opts...)
	})
}

// Runner spawns commands as local processes.
type Runner struct {
	logger       zerolog.Logger
	delay        Delay
	retries      int
	drainTimeout time.Duration
}

var _ runtime.Executor = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for spawn retries and terminations.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSpawnDelay overrides the pause between ETXTBSY retries.
func WithSpawnDelay(delay Delay) Option {
	return func(r *Runner) {
		if delay != nil {
			r.delay = delay
		}
	}
}

// WithMaxSpawnRetries overrides how many ETXTBSY retries are attempted.
func WithMaxSpawnRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithDrainTimeout bounds how long an interrupted read may stay outstanding on
// pipes that cannot be read without blocking.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

// New constructs a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:       zerolog.Nop(),
		delay:        DefaultDelay,
		retries:      MaxSpawnRetries,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Stream spawns spec and returns its live event stream. ctx bounds the spawn
// retries only; the run itself ends when the child exits or cancel fires.
func (r *Runner) Stream(ctx context.Context, spec runtime.CommandSpec, cancel runtime.Cancellation) (runtime.EventStream, error) {
	return r.stream(ctx, spec, cancel)
}

func (r *Runner) stream(ctx context.Context, spec runtime.CommandSpec, cancel runtime.Cancellation) (*Stream, error) {
	cmd, err := Prepare(spec)
	if err != nil {
		return nil, err
	}

	child, err := spawn(ctx, cmd, spawnConfig{delay: r.delay, retries: r.retries, logger: r.logger})
	if err != nil {
		return nil, err
	}

	stream, err := streamEvents(child, cancel, streamConfig{drainTimeout: r.drainTimeout, logger: r.logger})
	if err != nil {
		_ = child.Terminate()
		go child.wait()
		return nil, err
	}
	return stream, nil
}

// Run spawns spec, drains its output and returns the result. If ctx is done
// before the run ends, the process group is killed and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, spec runtime.CommandSpec, cancel runtime.Cancellation) (*runtime.Result, error) {
	stream, err := r.stream(ctx, spec, cancel)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return Gather(ctx, stream)
}

// Run spawns spec with the default Runner.
func Run(ctx context.Context, spec runtime.CommandSpec, cancel runtime.Cancellation) (*runtime.Result, error) {
	return New().Run(ctx, spec, cancel)
}
