package cli

import (
	stdcontext "context"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forkrun/internal/runtime/process"
)

func newRunCmd(ctx *context) *cobra.Command {
	var flags commandFlags
	cmd := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "Run a command and print its captured output when it ends",
		Long: `Run a command, capture its stdout and stderr and print them once it ends.
forkrun exits with the command's exit code, 124 when the timeout elapsed and
130 when it was interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec(args)
			if err != nil {
				return err
			}

			stopDiagnostics, err := ctx.serveDiagnostics(cmd.Context())
			if err != nil {
				return err
			}
			defer stopDiagnostics()

			stream, release, err := ctx.start(cmd, "", spec, flags.cancellation(cmd.Context(), ctx.cfg))
			if err != nil {
				return err
			}
			defer release()

			// Signals end the run through its cancellation, not by
			// abandoning the stream.
			res, err := process.Gather(stdcontext.WithoutCancel(cmd.Context()), stream)
			if err != nil {
				return err
			}

			if _, err := cmd.OutOrStdout().Write(res.Stdout); err != nil {
				return err
			}
			if _, err := cmd.ErrOrStderr().Write(res.Stderr); err != nil {
				return err
			}
			ctx.logger.Debug().Str("run_id", stream.ID()).Stringer("outcome", res.Outcome).Msg("command ended")
			return outcomeError(res.Outcome)
		},
	}
	flags.bind(cmd)
	return cmd
}
