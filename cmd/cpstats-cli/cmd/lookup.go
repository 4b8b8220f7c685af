package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <platform> <username>",
	Short: "Fetches the statistics of a username on one platform without storing them.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := instance.Service.Lookup(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if asJson {
			return printJson(record)
		}

		rows, err := fields(record)
		if err != nil {
			return err
		}
		t := newTable()
		t.SetTitle("%s: %s", record.Platform(), args[1])
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows(rows)
		t.Render()
		return nil
	},
}
