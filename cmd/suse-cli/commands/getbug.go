package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"suseapi/lib/scrapers/bugzilla"
)

var getbugPermissive bool

var getbugCmd = &cobra.Command{
	Use:   "getbug <id>...",
	Short: "Fetch one or more bugs and print their fields.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		entries, err := client.GetBugs(ctx, args, bugzilla.GetBugsOptions{
			Permissive: getbugPermissive,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "no bugs returned")
			return nil
		}
		for _, entry := range entries {
			printBug(entry.Bug)
		}
		return nil
	},
}

func printBug(bug *bugzilla.Bug) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"bug_id", bug.ID})

	names := make([]string, 0, len(bug.Fields))
	for name := range bug.Fields {
		if name == "bug_id" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{name, bug.Fields[name]})
	}

	if len(bug.CCList) > 0 {
		t.AppendRow(table.Row{"cc", fmt.Sprint(bug.CCList)})
	}
	if bug.CreationTS != nil {
		t.AppendRow(table.Row{"created", bug.CreationTS.String()})
	}
	if bug.DeltaTS != nil {
		t.AppendRow(table.Row{"changed", bug.DeltaTS.String()})
	}
	t.AppendFooter(table.Row{
		"comments / attachments",
		fmt.Sprintf("%d / %d", len(bug.Comments), len(bug.Attachments)),
	})
	t.Render()
}

func init() {
	getbugCmd.Flags().BoolVar(
		&getbugPermissive, "permissive", false,
		"skip bugs that fail to parse instead of aborting",
	)
	rootCmd.AddCommand(getbugCmd)
}
