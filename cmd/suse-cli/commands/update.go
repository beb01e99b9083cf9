package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"suseapi/lib/scrapers/bugzilla"
)

var (
	updateSet      []string
	updateWbAdd    string
	updateWbRemove string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields or whiteboard tokens of a bug.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bugid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bug id %q", args[0])
		}

		fields := map[string]string{}
		for _, raw := range updateSet {
			key, value, found := strings.Cut(raw, "=")
			if !found {
				return fmt.Errorf("invalid --set %q, want key=value", raw)
			}
			fields[key] = value
		}

		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		if err := client.Login(ctx, false); err != nil {
			return err
		}
		return client.UpdateBug(ctx, bugid, bugzilla.UpdateOptions{
			Fields:           fields,
			WhiteboardAdd:    updateWbAdd,
			WhiteboardRemove: updateWbRemove,
		})
	},
}

func init() {
	updateCmd.Flags().StringArrayVar(
		&updateSet, "set", nil, "field to set as key=value (repeatable)")
	updateCmd.Flags().StringVar(
		&updateWbAdd, "wb-add", "", "whiteboard token to add")
	updateCmd.Flags().StringVar(
		&updateWbRemove, "wb-remove", "", "whiteboard token to remove")
	rootCmd.AddCommand(updateCmd)
}
