package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var onceTerm string

func init() {
	onceCmd.Flags().StringVar(&onceTerm, "term", "", "The term to check (ex. 202608), defaults to the current term.")
	rootCmd.AddCommand(onceCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once [--term <id>]",
	Short: "Runs a single monitoring cycle over every tracked course and prints what happened.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		term, err := rt.term(onceTerm)
		if err != nil {
			return err
		}

		report := rt.monitor.RunAll(cmd.Context(), term)
		// failures of individual courses are part of the report, not of the command
		printReport(os.Stdout, report)
		return nil
	},
}
