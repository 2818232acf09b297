package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent operations",
	Long:  `Show the operation log, newest first. Only the most recent entries are kept.`,
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		a := mustOpenApp(cmd.Context())
		defer a.Close()

		entries := a.store.Logs()
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tSTATUS\tMESSAGE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp, e.Action, e.Status, e.Message)
		}
		w.Flush()
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 20, "Number of entries to show (0 for all)")
	rootCmd.AddCommand(logsCmd)
}
