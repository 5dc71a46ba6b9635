package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/forkrun/internal/api"
	httpapi "github.com/Paintersrp/forkrun/internal/api/http"
	"github.com/Paintersrp/forkrun/internal/config"
	"github.com/Paintersrp/forkrun/internal/logging"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

// The process executor registers itself when its package is linked in.
const defaultExecutor = "process"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{tracker: api.NewTracker()}

	root := &cobra.Command{
		Use:   "forkrun",
		Short: "Run external tools with streamed output, timeouts and process-group cleanup",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", os.Getenv("FORKRUN_CONFIG"), "Path to forkrun configuration file")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&ctx.logFormat, "log-format", "", "Log format (console, json)")
	flags.StringVar(&ctx.metricsAddr, "metrics-addr", "", "Serve metrics and run status on this address while running")

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newStreamCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(handleExit(err, os.Stderr))
}

// handleExit prints err unless it only carries an exit status and returns the
// process exit code.
func handleExit(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(stderr, err)
	return 1
}

type context struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string

	cfg      *config.Config
	logger   zerolog.Logger
	executor runtime.Executor
	tracker  *api.Tracker
}

func (c *context) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Address = c.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	if cfg.Logging.Output == "stdout" {
		out = cmd.OutOrStdout()
	}
	if !isTerminal(out) {
		cfg.Logging.NoColor = true
	}
	logger, err := logging.NewWithWriter(cfg.Logging, out)
	if err != nil {
		return err
	}

	executor, err := runtime.New(defaultExecutor, cfg.RuntimeSettings(logger))
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.executor = executor
	return nil
}

// serveDiagnostics starts the metrics and status endpoint when an address is
// configured. The returned function stops it.
func (c *context) serveDiagnostics(ctx stdcontext.Context) (func(), error) {
	if c.cfg == nil || c.cfg.Metrics.Address == "" {
		return func() {}, nil
	}
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:       c.cfg.Metrics.Address,
		Controller: c.tracker,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := stdcontext.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Run(runCtx); err != nil {
			c.logger.Error().Err(err).Str("addr", server.Addr()).Msg("diagnostics server failed")
		}
	}()
	c.logger.Debug().Str("addr", server.Addr()).Msg("serving metrics")

	return func() {
		cancel()
		<-done
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
