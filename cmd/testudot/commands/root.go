package commands

import (
	"context"
	"fmt"
	"os"

	"testudot/lib/telemetry"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X testudot/cmd/testudot/commands.version=..."
var version = "dev"

var (
	verbose bool
	dumpDir string
)

var rootCmd = &cobra.Command{
	Use:     "testudot",
	Short:   "testudot watches Testudo course sections and emails subscribers when they change.",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-http", "", "Write every Testudo request and response to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
