package commands

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchParams  []string
	searchRecent  time.Duration
	searchOpenL3  bool
	searchL3Sum   bool
	searchSecBugs bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for bug ids using a named search or raw query params.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		var ids []int
		switch {
		case searchOpenL3:
			ids, err = client.GetOpenL3Bugs(ctx)
		case searchL3Sum:
			ids, err = client.GetL3SummaryBugs(ctx)
		case searchSecBugs && searchRecent > 0:
			ids, err = client.GetRecentSecurityBugs(ctx, time.Now().Add(-searchRecent))
		case searchSecBugs:
			ids, err = client.GetOpenSecurityBugs(ctx)
		case searchRecent > 0:
			ids, err = client.GetRecentBugs(ctx, time.Now().Add(-searchRecent))
		default:
			params := url.Values{}
			for _, raw := range searchParams {
				key, value, found := strings.Cut(raw, "=")
				if !found {
					return fmt.Errorf("invalid --param %q, want key=value", raw)
				}
				params.Add(key, value)
			}
			if len(params) == 0 {
				return fmt.Errorf("nothing to search for, pass a named search or --param")
			}
			ids, err = client.DoSearch(ctx, params)
		}
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "bug"})
		for i, id := range ids {
			t.AppendRow(table.Row{i + 1, id})
		}
		t.Render()
		return nil
	},
}

func init() {
	searchCmd.Flags().StringArrayVar(
		&searchParams, "param", nil, "raw query parameter as key=value (repeatable)")
	searchCmd.Flags().DurationVar(
		&searchRecent, "recent", 0, "bugs changed within the given duration")
	searchCmd.Flags().BoolVar(
		&searchOpenL3, "open-l3", false, "bugs with openL3 in the whiteboard")
	searchCmd.Flags().BoolVar(
		&searchL3Sum, "l3-summary", false, "open bugs with L3: in the summary")
	searchCmd.Flags().BoolVar(
		&searchSecBugs, "security", false, "security incident bugs")
	rootCmd.AddCommand(searchCmd)
}
