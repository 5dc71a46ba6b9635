package cli

import (
	stdcontext "context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forkrun/internal/cliutil"
	"github.com/Paintersrp/forkrun/internal/config"
	"github.com/Paintersrp/forkrun/internal/runtime"
	"github.com/Paintersrp/forkrun/internal/runtime/process"
)

// commandFlags are shared by the commands that launch a program.
type commandFlags struct {
	timeout  time.Duration
	dir      string
	env      []string
	envFiles []string
}

func (f *commandFlags) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Kill the command's process group after this long (0 uses the configured run.timeout)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Working directory for the command")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "Set an environment variable for the command (KEY=VALUE, repeatable)")
	cmd.Flags().StringArrayVar(&f.envFiles, "env-file", nil, "Load environment variables for the command from a dotenv file (repeatable)")
	cmd.Flags().SetInterspersed(false)
}

// spec builds the command from the positional arguments. Values from env
// files are applied in order, then --env pairs override them.
func (f *commandFlags) spec(args []string) (runtime.CommandSpec, error) {
	if len(args) == 0 {
		return runtime.CommandSpec{}, fmt.Errorf("a program to run is required")
	}
	spec := runtime.CommandSpec{
		Program: args[0],
		Args:    append([]string(nil), args[1:]...),
		Dir:     f.dir,
	}

	env := make(map[string]string)
	for _, path := range f.envFiles {
		values, err := config.LoadEnvFile(path)
		if err != nil {
			return runtime.CommandSpec{}, err
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, pair := range f.env {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return runtime.CommandSpec{}, fmt.Errorf("invalid --env %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	if len(env) > 0 {
		spec.Env = env
	}

	if err := spec.Validate(); err != nil {
		return runtime.CommandSpec{}, err
	}
	return spec, nil
}

// cancellation races the configured deadline against ctx, which is done when
// forkrun receives SIGINT or SIGTERM.
func (f *commandFlags) cancellation(ctx stdcontext.Context, cfg *config.Config) runtime.Cancellation {
	timeout := f.timeout
	if timeout == 0 && cfg != nil {
		timeout = cfg.Run.Timeout.Duration
	}
	return process.FirstOf(process.Timeout(timeout), process.FromContext(ctx))
}

// start launches spec and registers it with the run tracker. The returned
// release function must be called once the stream is done with.
func (c *context) start(cmd *cobra.Command, label string, spec runtime.CommandSpec, cancel runtime.Cancellation) (runtime.EventStream, func(), error) {
	stream, err := c.executor.Stream(cmd.Context(), spec, cancel)
	if err != nil {
		return nil, nil, err
	}
	untrack := c.tracker.Track(label, spec, stream, cliutil.DescribeCommand)

	c.logger.Debug().
		Str("run_id", stream.ID()).
		Int("pid", stream.Pid()).
		Str("command", cliutil.DescribeCommand(spec)).
		Strs("env", cliutil.RedactEnv(spec.Env)).
		Msg("started command")

	return stream, func() {
		untrack()
		if err := stream.Close(); err != nil {
			c.logger.Warn().Err(err).Str("run_id", stream.ID()).Msg("close stream")
		}
	}, nil
}
