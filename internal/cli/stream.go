package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forkrun/internal/cliutil"
	"github.com/Paintersrp/forkrun/internal/logmux"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

const defaultStreamBuffer = 256

func newStreamCmd(ctx *context) *cobra.Command {
	var (
		flags      commandFlags
		jsonOutput bool
		allowDrops bool
		buffer     int
		maxLine    int
		label      string
	)
	cmd := &cobra.Command{
		Use:   "stream [flags] -- program [args...]",
		Short: "Run a command and forward its output line by line as it is produced",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxLine < 0 {
				return fmt.Errorf("--max-line must not be negative (got %d)", maxLine)
			}
			spec, err := flags.spec(args)
			if err != nil {
				return err
			}

			stopDiagnostics, err := ctx.serveDiagnostics(cmd.Context())
			if err != nil {
				return err
			}
			defer stopDiagnostics()

			stream, release, err := ctx.start(cmd, label, spec, flags.cancellation(cmd.Context(), ctx.cfg))
			if err != nil {
				return err
			}
			defer release()

			opts := []logmux.Option{logmux.WithMaxLineBytes(maxLine)}
			if !allowDrops {
				opts = append(opts, logmux.WithBackpressure())
			}
			mux := logmux.New(buffer, opts...)
			mux.Add(stdcontext.WithoutCancel(cmd.Context()), label, stream)
			go mux.Close()

			out := cmd.OutOrStdout()
			write := textWriter(out, isTerminal(out))
			if jsonOutput {
				enc := json.NewEncoder(out)
				write = func(entry logmux.Entry) {
					cliutil.EncodeLogEntry(enc, cmd.ErrOrStderr(), entry)
				}
			}

			var outcome *runtime.Outcome
			for entry := range mux.Output() {
				if entry.Outcome != nil {
					o := *entry.Outcome
					outcome = &o
				}
				write(entry)
			}

			if outcome == nil {
				return fmt.Errorf("run %s ended without an exit status", stream.ID())
			}
			return outcomeError(*outcome)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit one JSON record per line")
	cmd.Flags().BoolVar(&allowDrops, "allow-drops", false, "Drop lines instead of slowing the command when output cannot keep up")
	cmd.Flags().IntVar(&buffer, "buffer", defaultStreamBuffer, "Number of lines buffered between the command and the output")
	cmd.Flags().IntVar(&maxLine, "max-line", 0, "Forward an unterminated line once this many bytes are buffered (0 keeps the 64KiB default)")
	cmd.Flags().StringVar(&label, "label", "", "Label attached to every forwarded line (defaults to the run id)")
	return cmd
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func textWriter(w io.Writer, color bool) func(logmux.Entry) {
	return func(entry logmux.Entry) {
		line := cliutil.FormatLogEntry(entry, false)
		if color {
			switch entry.Source {
			case runtime.LogSourceStderr:
				line = colorRed + line + colorReset
			case runtime.LogSourceSystem:
				line = colorYellow + line + colorReset
			}
		}
		fmt.Fprintln(w, line)
	}
}
