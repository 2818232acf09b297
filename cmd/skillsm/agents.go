package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/persist"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	"github.com/d0ublecl1ck/skills-manager/pkg/runguard"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage agent platforms",
	Long:  `List the supported agent platforms, change their skill directories and turn them on or off.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent platforms",
	Run: func(cmd *cobra.Command, _ []string) {
		all, _ := cmd.Flags().GetBool("all")

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		counts := make(map[catalogtypes.AgentID]int)
		for _, sk := range a.store.Skills() {
			for _, id := range sk.EnabledAgents {
				counts[id]++
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tENABLED\tSKILLS\tPATH")
		for _, p := range a.platforms {
			if !all && !p.Enabled {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", p.ID, p.Name, p.Enabled, counts[p.ID], strings.Join(platforms.Roots(p), ", "))
		}
		w.Flush()
	},
}

var agentsSetPathCmd = &cobra.Command{
	Use:   "set-path <platform> <path>",
	Short: "Change where a platform keeps its skills",
	Long: `Change the skill directory of a platform. An empty path ("") restores the default.
Skills are not moved; run 'skillsm distribute' afterwards to populate the new directory.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := catalogtypes.AgentID(args[0])
		err := updatePlatform(cmd.Context(), id, func(p *catalogtypes.Platform) {
			p.CurrentPath = strings.TrimSpace(args[1])
		})
		if err != nil {
			presenter.Error(err, "Failed to update platform")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Updated the skill directory of %s", id))
	},
}

var agentsToggleCmd = &cobra.Command{
	Use:   "toggle <platform>",
	Short: "Turn a platform on or off",
	Long:  `Turn a platform on or off. Disabled platforms are never scanned or written to.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := catalogtypes.AgentID(args[0])
		var enabled bool
		err := updatePlatform(cmd.Context(), id, func(p *catalogtypes.Platform) {
			p.Enabled = !p.Enabled
			enabled = p.Enabled
		})
		if err != nil {
			presenter.Error(err, "Failed to update platform")
			os.Exit(1)
		}
		if enabled {
			presenter.Success(fmt.Sprintf("Enabled %s", id))
		} else {
			presenter.Success(fmt.Sprintf("Disabled %s", id))
		}
	},
}

var agentsEnableAllCmd = &cobra.Command{
	Use:   "enable-all <platform>",
	Short: "Enable every skill for a platform",
	Long:  `Enable every tracked skill for the platform and distribute the whole catalog.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := parseAgents(args)
		if err != nil {
			presenter.Error(err, "Invalid platform")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		changed, err := a.runner.EnableAll(ctx, ids[0])
		switch {
		case errors.Is(err, runguard.ErrStaleRun):
			presenter.Warning("Distribution was superseded")
		case err != nil:
			presenter.Error(err, "Distribution completed with errors")
			os.Exit(1)
		case !changed:
			presenter.Info(fmt.Sprintf("Every skill is already enabled for %s", ids[0]))
		default:
			presenter.Success(fmt.Sprintf("Enabled every skill for %s", ids[0]))
		}
	},
}

func init() {
	agentsListCmd.Flags().Bool("all", false, "Include disabled platforms")

	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsSetPathCmd)
	agentsCmd.AddCommand(agentsToggleCmd)
	agentsCmd.AddCommand(agentsEnableAllCmd)
	rootCmd.AddCommand(agentsCmd)
}

// updatePlatform edits the persisted platform list. Config file overrides are
// applied on load and never written back.
func updatePlatform(ctx context.Context, id catalogtypes.AgentID, edit func(*catalogtypes.Platform)) error {
	if _, err := platforms.Lookup(id); err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return editPlatforms(ctx, a.repo, id, edit)
}

func editPlatforms(ctx context.Context, repo *persist.Repository, id catalogtypes.AgentID, edit func(*catalogtypes.Platform)) error {
	list, err := repo.LoadPlatforms(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			edit(&list[i])
		}
	}
	return repo.SavePlatforms(ctx, list)
}
