package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// AdoptConfig holds configuration for the adopt command
type AdoptConfig struct {
	Source string
	Agents []string
}

// NewAdoptConfig creates an AdoptConfig with default values
func NewAdoptConfig() *AdoptConfig {
	return &AdoptConfig{}
}

var enableCmd = &cobra.Command{
	Use:   "enable <skill> <platform>...",
	Short: "Enable a skill for one or more platforms",
	Long: `Enable a skill for the given platforms and copy it into their skill directories.

Examples:
  skillsm enable pdf codex
  skillsm enable pdf codex,cursor claude-code`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		changeAgents(cmd, args[0], args[1:], func(current, ids []catalogtypes.AgentID) []catalogtypes.AgentID {
			return catalogtypes.UnionAgents(current, ids)
		})
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <skill> <platform>...",
	Short: "Disable a skill for one or more platforms",
	Long:  `Disable a skill for the given platforms and remove it from their skill directories.`,
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		changeAgents(cmd, args[0], args[1:], func(current, ids []catalogtypes.AgentID) []catalogtypes.AgentID {
			return slices.DeleteFunc(slices.Clone(current), func(id catalogtypes.AgentID) bool {
				return slices.Contains(ids, id)
			})
		})
	},
}

var setAgentsCmd = &cobra.Command{
	Use:   "set-agents <skill> [platform]...",
	Short: "Replace the platforms a skill is enabled for",
	Long:  `Replace the platforms a skill is enabled for. Without platforms the skill is disabled everywhere.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		changeAgents(cmd, args[0], args[1:], func(_, ids []catalogtypes.AgentID) []catalogtypes.AgentID {
			return ids
		})
	},
}

var adoptCmd = &cobra.Command{
	Use:   "adopt <skill>",
	Short: "Take over management of a discovered skill",
	Long: `Mark a skill that was discovered in a platform directory as managed by skillsm.
Binding a source URL makes the skill updatable with 'skillsm update'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getAdoptConfigFromFlags(cmd)
		agents, err := parseAgents(config.Agents)
		if err != nil {
			presenter.Error(err, "Invalid --agents")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skill, err := findSkill(a.store.Skills(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}

		opts := catalog.AdoptOptions{SourceURL: config.Source}
		if len(config.Agents) > 0 {
			opts.EnabledAgents = agents
		}
		if err := a.store.AdoptSkill(skill.ID, opts); err != nil {
			presenter.Error(err, "Failed to adopt skill")
			os.Exit(1)
		}

		adopted, _ := a.store.Get(skill.ID)
		if opts.EnabledAgents != nil {
			if err := a.service.Distribute(ctx, adopted); err != nil {
				a.manager.RecordFailure(ctx, catalogtypes.LogActionEnable, adopted, err)
				presenter.Error(err, "Adopted, but distribution failed")
				os.Exit(1)
			}
		}
		presenter.Success(fmt.Sprintf("Adopted %s", adopted.Name))
	},
}

func init() {
	defaults := NewAdoptConfig()
	adoptCmd.Flags().String("source", defaults.Source, "Source URL to bind for updates")
	adoptCmd.Flags().StringSlice("agents", defaults.Agents, "Replace the enabled platforms")

	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(setAgentsCmd)
	rootCmd.AddCommand(adoptCmd)
}

func getAdoptConfigFromFlags(cmd *cobra.Command) *AdoptConfig {
	config := NewAdoptConfig()
	if source, err := cmd.Flags().GetString("source"); err == nil {
		config.Source = source
	}
	if agents, err := cmd.Flags().GetStringSlice("agents"); err == nil {
		config.Agents = agents
	}
	return config
}

func changeAgents(cmd *cobra.Command, ref string, values []string, next func(current, ids []catalogtypes.AgentID) []catalogtypes.AgentID) {
	ids, err := parseAgents(values)
	if err != nil {
		presenter.Error(err, "Invalid platform")
		os.Exit(1)
	}

	ctx := cmd.Context()
	a := mustOpenApp(ctx)
	defer a.Close()

	skill, err := findSkill(a.store.Skills(), ref)
	if err != nil {
		presenter.Error(err, "Skill not found")
		os.Exit(1)
	}

	agents := next(skill.EnabledAgents, ids)
	if err := a.manager.SetSkillAgents(ctx, skill.ID, agents); err != nil {
		presenter.Error(err, "Failed to distribute skill")
		os.Exit(1)
	}

	updated, _ := a.store.Get(skill.ID)
	presenter.Success(fmt.Sprintf("%s is enabled for: %s", updated.Name, orDash(joinAgents(updated.EnabledAgents))))
}
