package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"testudot/internal/components/telemetry"
	"testudot/internal/mappings"
	"testudot/lib/tableutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
}

// openMappings doesn't need the rest of the runtime, editing subscriptions works without
// credentials.
func openMappings() (*mappings.File, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return mappings.NewFile(cfg.MappingsPath, telemetry.SlogAPI{}), nil
}

var addCmd = &cobra.Command{
	Use:   "add <email> <courses...>",
	Short: "Subscribes an email to courses, courses may be separated by commas or spaces.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := openMappings()
		if err != nil {
			return err
		}
		courses, err := file.Add(args[0], mappings.SplitCourses(args[1:]...))
		if err != nil {
			return err
		}
		fmt.Printf("%s is subscribed to %s\n", strings.ToLower(args[0]), strings.Join(courses, ", "))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lists every subscription.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := openMappings()
		if err != nil {
			return err
		}
		all, err := file.AllMappings()
		if err != nil {
			return err
		}

		t := tableutil.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"Email", "Courses"})
		emails := make([]string, 0, len(all))
		for email := range all {
			emails = append(emails, email)
		}
		slices.Sort(emails)
		for _, email := range emails {
			t.AppendRow(table.Row{email, strings.Join(all[email], ", ")})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d recipients", len(all)), fmt.Sprintf("%d courses", len(mappings.Courses(all)))})
		t.Render()
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Unsubscribes an email from every course.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := openMappings()
		if err != nil {
			return err
		}
		removed, err := file.Remove(args[0])
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("removed %s\n", args[0])
			return nil
		}

		suggestion, ok := file.Suggest(args[0])
		if ok {
			return fmt.Errorf("%s is not subscribed to anything, did you mean %s?", args[0], suggestion)
		}
		return fmt.Errorf("%s is not subscribed to anything", args[0])
	},
}
