package commands

import (
	"fmt"

	"testudot/internal/components/chrono"
	"testudot/internal/scrapers/testudo"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(termCmd)
}

var termCmd = &cobra.Command{
	Use:   "term [id]",
	Short: "Prints the term that would be monitored, or describes the given term id.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := testudo.CurrentTerm(chrono.NewStandardTime().Now())
		if len(args) == 1 {
			id = args[0]
		}
		term, err := testudo.ParseTerm(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", term.ID(), term.Label())
		return nil
	},
}
