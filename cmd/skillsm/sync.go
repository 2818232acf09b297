package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	"github.com/d0ublecl1ck/skills-manager/pkg/runguard"
)

// SyncConfig holds configuration for the sync command
type SyncConfig struct {
	All   bool
	Match string
}

// NewSyncConfig creates a SyncConfig with default values
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		All:   false,
		Match: "",
	}
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find skills that exist only in platform directories",
	Long: `Scan the enabled platform directories for skills that are not in the catalog
or the recycle bin.

Examples:
  skillsm detect
  skillsm detect --match 'git-*'`,
	Run: func(cmd *cobra.Command, _ []string) {
		match, _ := cmd.Flags().GetString("match")

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		candidates, err := a.service.DetectUntracked(ctx, match)
		if err != nil {
			presenter.Error(err, "Detection failed")
			os.Exit(1)
		}
		if len(candidates) == 0 {
			presenter.Info("No untracked skills found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFOUND IN")
		for _, c := range candidates {
			fmt.Fprintf(w, "%s\t%s\n", c.Name, strings.Join(c.SourceAgentNames, ", "))
		}
		w.Flush()
		presenter.Info("\nRun 'skillsm sync <name>...' to add them to the catalog.")
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [name]...",
	Short: "Copy skills from platform directories into the catalog",
	Long: `Copy the named untracked skills into the central store and add them to the
catalog. With --all every skill of every enabled platform is imported; when the
same skill exists on several platforms the copy with frontmatter (then the
larger SKILL.md) wins.

Examples:
  skillsm sync pdf release-notes
  skillsm sync --match 'git-*'
  skillsm sync --all`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getSyncConfigFromFlags(cmd)
		if config.All && (len(args) > 0 || config.Match != "") {
			presenter.Error(errors.New("--all cannot be combined with names or --match"), "Invalid arguments")
			os.Exit(1)
		}
		if !config.All && len(args) == 0 && config.Match == "" {
			presenter.Error(errors.New("give skill names, --match or --all"), "Invalid arguments")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		if config.All {
			records, err := a.runner.SyncAll(ctx)
			if errors.Is(err, runguard.ErrStaleRun) {
				presenter.Warning("Sync was superseded")
				return
			}
			if err != nil {
				presenter.Error(err, "Sync failed")
				os.Exit(1)
			}
			presenter.Success(fmt.Sprintf("Synced %d skill(s)", len(records)))
			return
		}

		names := args
		if config.Match != "" {
			candidates, err := a.service.DetectUntracked(ctx, config.Match)
			if err != nil {
				presenter.Error(err, "Detection failed")
				os.Exit(1)
			}
			for _, c := range candidates {
				names = append(names, c.Name)
			}
		}
		if len(names) == 0 {
			presenter.Info("Nothing to sync.")
			return
		}

		records, err := a.service.SyncSelected(ctx, names)
		if err != nil {
			presenter.Error(err, "Sync failed")
			os.Exit(1)
		}
		for _, r := range records {
			presenter.Success(fmt.Sprintf("Synced %s (%s)", r.Name, orDash(joinAgents(r.EnabledAgents))))
		}
	},
}

var distributeCmd = &cobra.Command{
	Use:   "distribute [skill]",
	Short: "Push skills to the platform directories",
	Long: `Make every enabled platform directory match the catalog. With a skill argument
only that skill is distributed. A failing skill does not stop the others.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		if len(args) == 1 {
			skill, err := findSkill(a.store.Skills(), args[0])
			if err != nil {
				presenter.Error(err, "Skill not found")
				os.Exit(1)
			}
			if err := a.service.Distribute(ctx, skill); err != nil {
				presenter.Error(err, "Distribution failed")
				os.Exit(1)
			}
			presenter.Success(fmt.Sprintf("Distributed %s", skill.Name))
			return
		}

		err := a.runner.DistributeAll(ctx)
		switch {
		case errors.Is(err, runguard.ErrStaleRun):
			presenter.Warning("Distribution was superseded")
		case err != nil:
			presenter.Error(err, "Distribution completed with errors")
			os.Exit(1)
		default:
			presenter.Success("Distribution complete")
		}
	},
}

func init() {
	detectCmd.Flags().StringP("match", "m", "", "Only show skills whose name matches a glob")

	defaults := NewSyncConfig()
	syncCmd.Flags().Bool("all", defaults.All, "Import every skill of every enabled platform")
	syncCmd.Flags().StringP("match", "m", defaults.Match, "Sync every untracked skill whose name matches a glob")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(distributeCmd)
}

func getSyncConfigFromFlags(cmd *cobra.Command) *SyncConfig {
	config := NewSyncConfig()
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if match, err := cmd.Flags().GetString("match"); err == nil {
		config.Match = match
	}
	return config
}
