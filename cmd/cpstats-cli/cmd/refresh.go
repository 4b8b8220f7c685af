package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <user id>",
	Short: "Refreshes and stores the statistics of a user, as POST /api/refresh would.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := instance.Service.RefreshIdentity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJson {
			return printJson(result)
		}

		t := newTable()
		t.SetTitle("refreshed at %s", result.UpdatedAt.Format(time.RFC3339))
		t.AppendHeader(table.Row{"Platform", "Status"})
		for _, platform := range result.Refreshed {
			t.AppendRow(table.Row{platform, "ok"})
		}
		for _, platform := range result.Failed {
			t.AppendRow(table.Row{platform, "failed"})
		}
		if len(result.Refreshed)+len(result.Failed) == 0 {
			fmt.Println("The profile has no usernames configured, stored an empty set of statistics.")
			return nil
		}
		t.Render()
		return nil
	},
}
