package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage the recycle bin",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete everything in the recycle bin",
	Run: func(cmd *cobra.Command, _ []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		bin := a.store.RecycleBin()
		if len(bin) == 0 {
			presenter.Info("Recycle bin is empty.")
			return
		}
		if !yes && !presenter.Confirm(fmt.Sprintf("Permanently delete %d skill(s)?", len(bin))) {
			presenter.Info("Aborted.")
			return
		}
		if err := a.manager.EmptyRecycleBin(ctx); err != nil {
			presenter.Error(err, "Recycle bin emptied, but removing some files failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Deleted %d skill(s)", len(bin)))
	},
}

var trashCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete recycle bin entries older than the retention period",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		purged, err := a.manager.CleanExpiredTrash(ctx, a.retentionDays())
		if err != nil {
			presenter.Error(err, "Failed to remove expired skills from disk")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Deleted %d expired skill(s)", purged))
	},
}

var trashRetentionCmd = &cobra.Command{
	Use:   "retention [days]",
	Short: "Show or set how many days removed skills are kept",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		if len(args) == 0 {
			presenter.Info(fmt.Sprintf("%d day(s)", a.retentionDays()))
			return
		}

		days, err := strconv.Atoi(args[0])
		if err != nil {
			presenter.Error(err, "Invalid number of days")
			os.Exit(1)
		}
		settings := a.settings
		settings.RecycleBinRetentionDays = days
		if err := a.repo.SaveSettings(ctx, settings); err != nil {
			presenter.Error(err, "Failed to save settings")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Removed skills are kept for %d day(s)", catalog.ClampRetention(days)))
	},
}

func init() {
	trashEmptyCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	trashCmd.AddCommand(trashEmptyCmd)
	trashCmd.AddCommand(trashCleanCmd)
	trashCmd.AddCommand(trashRetentionCmd)
	rootCmd.AddCommand(trashCmd)
}
