package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend/local"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	"github.com/d0ublecl1ck/skills-manager/pkg/runguard"
)

// InstallConfig holds configuration for the install command
type InstallConfig struct {
	Skill  string
	Agents []string
}

// NewInstallConfig creates an InstallConfig with default values
func NewInstallConfig() *InstallConfig {
	return &InstallConfig{
		Skill:  "",
		Agents: []string{},
	}
}

// UpdateConfig holds configuration for the update command
type UpdateConfig struct {
	All bool
}

// NewUpdateConfig creates an UpdateConfig with default values
func NewUpdateConfig() *UpdateConfig {
	return &UpdateConfig{All: false}
}

var installCmd = &cobra.Command{
	Use:   "install <url>",
	Short: "Install a skill from a repository or zip archive",
	Long: `Install a skill into the central store. The source may be a GitHub URL,
a github.com/owner/repo path, an owner/repo shorthand or a .zip download.

Examples:
  skillsm install anthropics/skills --skill pdf
  skillsm install https://github.com/acme/release-notes-skill --agents codex,claude-code
  skillsm install https://example.com/skill.zip`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getInstallConfigFromFlags(cmd)
		agents, err := parseAgents(config.Agents)
		if err != nil {
			presenter.Error(err, "Invalid --agents")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		url := local.NormalizeURL(args[0])
		presenter.Info(fmt.Sprintf("Installing from %s...", url))
		skill, err := a.service.Install(ctx, url, config.Skill)
		if err != nil {
			presenter.Error(err, "Failed to install skill")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Installed %s (%s)", skill.Name, skill.ID))

		if len(agents) == 0 {
			return
		}
		if err := a.manager.SetSkillAgents(ctx, skill.ID, agents); err != nil {
			presenter.Error(err, "Installed, but distribution failed")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Enabled for %s", joinAgents(agents)))
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [skill]",
	Short: "Reinstall skills from their source",
	Long: `Reinstall a skill from its source URL and distribute the fresh copy.
With --all, every platform-installed skill that has a source URL is updated
one after another; a failure does not stop the batch.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getUpdateConfigFromFlags(cmd)
		if config.All == (len(args) == 1) {
			presenter.Error(errors.New("give either a skill or --all"), "Invalid arguments")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		if config.All {
			updated, err := a.runner.UpdateAll(ctx)
			if errors.Is(err, runguard.ErrStaleRun) {
				presenter.Warning("Update was superseded")
				return
			}
			if err != nil {
				presenter.Error(err, fmt.Sprintf("Updated %d skill(s), some updates failed", len(updated)))
				os.Exit(1)
			}
			presenter.Success(fmt.Sprintf("Updated %d skill(s)", len(updated)))
			return
		}

		skill, err := findSkill(a.store.Skills(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}
		updated, err := a.manager.ReinstallSkill(ctx, skill.ID)
		if err != nil {
			presenter.Error(err, "Failed to update skill")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Updated %s from %s", updated.Name, updated.SourceURL))
	},
}

func init() {
	installDefaults := NewInstallConfig()
	installCmd.Flags().StringP("skill", "s", installDefaults.Skill, "Skill to pick from a multi-skill repository")
	installCmd.Flags().StringSliceP("agents", "a", installDefaults.Agents, "Platforms to enable the skill for after installing")

	updateDefaults := NewUpdateConfig()
	updateCmd.Flags().Bool("all", updateDefaults.All, "Update every platform-installed skill")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
}

func getInstallConfigFromFlags(cmd *cobra.Command) *InstallConfig {
	config := NewInstallConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if agents, err := cmd.Flags().GetStringSlice("agents"); err == nil {
		config.Agents = agents
	}
	return config
}

func getUpdateConfigFromFlags(cmd *cobra.Command) *UpdateConfig {
	config := NewUpdateConfig()
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	return config
}
