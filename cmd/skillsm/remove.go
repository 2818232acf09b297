package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
)

var removeCmd = &cobra.Command{
	Use:   "remove <skill>",
	Short: "Move a skill to the recycle bin",
	Long: `Move a skill to the recycle bin. Its files stay on disk until the skill is
purged, either explicitly or when the retention period expires.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skill, err := findSkill(a.store.Skills(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}
		if err := a.manager.RemoveSkill(ctx, skill.ID); err != nil {
			presenter.Error(err, "Failed to remove skill")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Moved %s to the recycle bin (kept for %d day(s))", skill.Name, a.retentionDays()))
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <skill>",
	Short: "Restore a skill from the recycle bin",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skill, err := findSkill(a.store.RecycleBin(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not in the recycle bin")
			os.Exit(1)
		}
		if err := a.manager.RestoreSkill(ctx, skill.ID); err != nil {
			presenter.Error(err, "Restored, but distribution failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Restored %s", skill.Name))
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <skill>",
	Short: "Permanently delete a skill from the recycle bin",
	Long:  `Permanently delete a recycled skill and remove its files from the central store and every platform directory.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skill, err := findSkill(a.store.RecycleBin(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not in the recycle bin")
			os.Exit(1)
		}
		if err := a.manager.PermanentlyDeleteSkill(ctx, skill.ID); err != nil {
			presenter.Error(err, "Purged, but removing files failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Purged %s", skill.Name))
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(purgeCmd)
}
