package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forkrun/internal/metrics"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			goVersion, revision := metrics.BuildInfo()
			if revision == "" {
				revision = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forkrun %s\ngo: %s\nrevision: %s\n", version, goVersion, revision)
			return nil
		},
	}
}
