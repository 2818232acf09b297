package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the central skill store",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var storePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the central store location",
	Run: func(cmd *cobra.Command, _ []string) {
		a := mustOpenApp(cmd.Context())
		defer a.Close()
		fmt.Println(a.storagePath())
	},
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate <new-path>",
	Short: "Move the central store to a new location",
	Long: `Move every skill directory of the central store to a new location and make it
the saved store path. The move is refused when the destination lies inside the
current store or already holds entries with the same names; the saved path only
changes when the move succeeds.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		from, to := a.storagePath(), args[0]
		if err := a.service.Backend().MigrateStore(ctx, from, to); err != nil {
			presenter.Error(err, "Failed to move the central store")
			os.Exit(1)
		}

		settings := a.settings
		settings.StoragePath = to
		if err := a.repo.SaveSettings(ctx, settings); err != nil {
			presenter.Error(err, "Store moved, but saving the new path failed")
			os.Exit(1)
		}
		if err := a.repo.RecordRelocation(ctx, from, to); err != nil {
			presenter.Warning(fmt.Sprintf("Could not record the move: %v", err))
		}
		presenter.Success(fmt.Sprintf("Moved the central store from %s to %s", from, to))
		if a.cfg.StoragePath != "" {
			presenter.Warning("storage_path is set in the configuration and still takes precedence")
		}
	},
}

var storeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the central store",
	Long: `Delete the central store directory with every skill in it. The catalog is kept;
run 'skillsm sync --all' to rebuild the store from the platform directories.`,
	Run: func(cmd *cobra.Command, _ []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		path := a.storagePath()
		if !yes && !presenter.Confirm(fmt.Sprintf("Delete %s and everything in it?", path)) {
			presenter.Info("Aborted.")
			return
		}
		if err := a.service.Backend().ResetStore(ctx, path); err != nil {
			presenter.Error(err, "Failed to reset the central store")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Deleted %s", path))
	},
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous moves of the central store",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		moves, err := a.repo.Relocations(ctx)
		if err != nil {
			presenter.Error(err, "Failed to read store history")
			os.Exit(1)
		}
		if len(moves) == 0 {
			presenter.Info("The central store has never been moved.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tFROM\tTO")
		for _, m := range moves {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.RelocatedAt.Local().Format(time.DateTime), m.FromPath, m.ToPath)
		}
		w.Flush()
	},
}

func init() {
	storeResetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	storeCmd.AddCommand(storePathCmd)
	storeCmd.AddCommand(storeMigrateCmd)
	storeCmd.AddCommand(storeResetCmd)
	storeCmd.AddCommand(storeHistoryCmd)
	rootCmd.AddCommand(storeCmd)
}
