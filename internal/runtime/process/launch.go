package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Paintersrp/forkrun/internal/metrics"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

const (
	// MaxSpawnRetries bounds how many times a spawn failing with ETXTBSY is
	// retried.
	MaxSpawnRetries = 10

	// DefaultSpawnDelay is the pause between spawn attempts.
	DefaultSpawnDelay = 50 * time.Millisecond
)

// Delay suspends between spawn attempts. It returns an error when ctx is done
// before the delay elapsed.
type Delay func(ctx context.Context) error

// SleepDelay returns a Delay that waits for d.
func SleepDelay(d time.Duration) Delay {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DefaultDelay waits DefaultSpawnDelay between spawn attempts.
var DefaultDelay = SleepDelay(DefaultSpawnDelay)

// Prepare builds the platform command for spec without starting it. Stdin is
// disabled and, on Unix, the child will lead a new process group. Stdout and
// stderr are left unset: Spawn attaches its own pipes, and callers that spawn
// through a different path attach theirs.
func Prepare(spec runtime.CommandSpec) (*exec.Cmd, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	if env := spec.EnvList(); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdin = nil

	configureCmdSysProcAttr(cmd)
	return cmd, nil
}

// Child is a spawned process together with the parent's ends of its stdout and
// stderr pipes.
type Child struct {
	cmd *exec.Cmd
	pid int

	pipeMu sync.Mutex
	stdout *os.File
	stderr *os.File

	mu     sync.Mutex
	reaped bool

	kill func(pid int) error
}

// Pid returns the process id of the child.
func (c *Child) Pid() int {
	return c.pid
}

// Terminate kills the child's whole process group. It is a no-op once the child
// has been reaped.
func (c *Child) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reaped {
		return nil
	}
	return c.kill(c.pid)
}

// wait blocks until the direct child exits and returns its exit code. It must
// be called at most once.
func (c *Child) wait() (int, error) {
	err := c.cmd.Wait()

	c.mu.Lock()
	c.reaped = true
	c.mu.Unlock()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, err
		}
	}
	return c.cmd.ProcessState.ExitCode(), nil
}

// takePipes hands the read ends over to a single consumer.
func (c *Child) takePipes() (stdout, stderr *os.File, err error) {
	c.pipeMu.Lock()
	defer c.pipeMu.Unlock()
	if c.stdout == nil {
		return nil, nil, fmt.Errorf("child stdout: %w", ErrPipeSetup)
	}
	if c.stderr == nil {
		return nil, nil, fmt.Errorf("child stderr: %w", ErrPipeSetup)
	}
	stdout, stderr = c.stdout, c.stderr
	c.stdout, c.stderr = nil, nil
	return stdout, stderr, nil
}

// Spawn starts cmd with its stdout and stderr piped back to the caller,
// retrying up to MaxSpawnRetries times while the kernel reports ETXTBSY and
// calling delay between attempts. Any other failure is returned immediately
// without calling delay.
//
// cmd itself is never started; each attempt starts a copy carrying the fields
// Prepare sets plus ExtraFiles and WaitDelay. The context and Cancel hook of a
// command built with exec.CommandContext are not carried over: stop the run
// through its Cancellation instead.
func Spawn(ctx context.Context, cmd *exec.Cmd, delay Delay) (*Child, error) {
	return spawn(ctx, cmd, spawnConfig{delay: delay, retries: MaxSpawnRetries, logger: zerolog.Nop()})
}

type spawnConfig struct {
	delay   Delay
	retries int
	logger  zerolog.Logger
}

// fork-exec races with concurrent writers: a file we just finished writing
// can still be open in a process forked by another goroutine until that
// process execs and its CLOEXEC descriptors close. exec of the file fails
// with ETXTBSY during that window, which is short, so a few retries get
// through it.
func spawn(ctx context.Context, cmd *exec.Cmd, cfg spawnConfig) (*Child, error) {
	if cmd.Stdout != nil {
		return nil, fmt.Errorf("stdout already attached: %w", ErrPipeSetup)
	}
	if cmd.Stderr != nil {
		return nil, fmt.Errorf("stderr already attached: %w", ErrPipeSetup)
	}
	if cfg.delay == nil {
		cfg.delay = DefaultDelay
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	closeAll := func() {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
	}

	remaining := cfg.retries
	attempts := 0
	for {
		attempt := cloneCommand(cmd)
		attempt.Stdout = stdoutW
		attempt.Stderr = stderrW

		attempts++
		startErr := attempt.Start()
		if startErr == nil {
			metrics.ObserveSpawn(metrics.ResultOK)
			// The child holds its own copies; ours would keep EOF from
			// ever being observed.
			stdoutW.Close()
			stderrW.Close()
			return &Child{
				cmd:    attempt,
				pid:    attempt.Process.Pid,
				stdout: stdoutR,
				stderr: stderrR,
				kill:   killProcessGroup,
			}, nil
		}

		if remaining <= 0 || !isTextFileBusy(startErr) {
			metrics.ObserveSpawn(metrics.ResultError)
			closeAll()
			return nil, &SpawnError{Program: cmd.Path, Attempts: attempts, Err: startErr}
		}

		metrics.IncrementSpawnRetry()
		cfg.logger.Debug().
			Str("program", cmd.Path).
			Int("attempt", attempts).
			Msg("spawn hit ETXTBSY, retrying")

		if err := cfg.delay(ctx); err != nil {
			metrics.ObserveSpawn(metrics.ResultError)
			closeAll()
			return nil, &SpawnError{Program: cmd.Path, Attempts: attempts, Err: errors.Join(startErr, err)}
		}
		remaining--
	}
}

// cloneCommand copies the launch parameters of cmd into a fresh, unstarted
// command. An exec.Cmd cannot be started twice. Cancel is left out: the hook
// of an exec.CommandContext command closes over the original, unstarted cmd.
func cloneCommand(cmd *exec.Cmd) *exec.Cmd {
	dup := &exec.Cmd{
		Path:        cmd.Path,
		Args:        append([]string(nil), cmd.Args...),
		Env:         cmd.Env,
		Dir:         cmd.Dir,
		Stdin:       cmd.Stdin,
		ExtraFiles:  cmd.ExtraFiles,
		SysProcAttr: cmd.SysProcAttr,
		WaitDelay:   cmd.WaitDelay,
		Err:         cmd.Err,
	}
	return dup
}
