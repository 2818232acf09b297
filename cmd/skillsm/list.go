package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Output string
	Trash  bool
}

// NewListConfig creates a ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{
		Output: "table",
		Trash:  false,
	}
}

// Validate checks the output format
func (c *ListConfig) Validate() error {
	switch c.Output {
	case "table", "json", "yaml":
		return nil
	default:
		return errors.Errorf("invalid output format %q, must be one of: table, json, yaml", c.Output)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked skills",
	Long: `List the skills in the catalog with their install source and enabled platforms.
Use --trash to list the recycle bin instead.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getListConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skills := a.store.Skills()
		if config.Trash {
			skills = a.store.RecycleBin()
		}

		if err := writeSkills(os.Stdout, skills, config.Output, config.Trash); err != nil {
			presenter.Error(err, "Failed to print skills")
			os.Exit(1)
		}

		if config.Trash || config.Output != "table" {
			return
		}
		candidates, err := a.service.DetectUntracked(ctx, "")
		if err != nil {
			presenter.Warning(fmt.Sprintf("Could not scan platform directories: %v", err))
			return
		}
		if len(candidates) > 0 {
			presenter.Warning(fmt.Sprintf("%d untracked skill(s) found in platform directories, run 'skillsm detect' to review", len(candidates)))
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show one skill",
	Long:  `Show a skill's catalog record together with the name and description read from its SKILL.md.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		skill, err := findSkill(a.store.Skills(), args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}

		presenter.Section(skill.Name)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", skill.ID)
		fmt.Fprintf(w, "Source:\t%s\n", orDash(skill.SourceURL))
		fmt.Fprintf(w, "Install source:\t%s\n", skill.DerivedInstallSource())
		fmt.Fprintf(w, "Adopted:\t%t\n", skill.Adopted())
		fmt.Fprintf(w, "Platforms:\t%s\n", orDash(joinAgents(skill.EnabledAgents)))
		fmt.Fprintf(w, "Last sync:\t%s\n", orDash(skill.LastSync))
		fmt.Fprintf(w, "Last update:\t%s\n", orDash(skill.LastUpdate))

		details, err := a.service.Describe(ctx, skill)
		if err == nil {
			fmt.Fprintf(w, "Directory:\t%s\n", details.Directory)
			fmt.Fprintf(w, "Description:\t%s\n", orDash(details.Description))
		}
		w.Flush()

		if err != nil {
			presenter.Warning(fmt.Sprintf("Could not read SKILL.md: %v", err))
		}
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("output", "o", defaults.Output, "Output format (table, json, yaml)")
	listCmd.Flags().Bool("trash", defaults.Trash, "List the recycle bin")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if trash, err := cmd.Flags().GetBool("trash"); err == nil {
		config.Trash = trash
	}
	return config
}

func writeSkills(out io.Writer, skills []catalogtypes.Skill, format string, trash bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(skills)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(skills)
	}

	if len(skills) == 0 {
		if trash {
			fmt.Fprintln(out, "Recycle bin is empty.")
		} else {
			fmt.Fprintln(out, "No skills tracked. Install one with 'skillsm install' or run 'skillsm sync --all'.")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if trash {
		fmt.Fprintln(w, "ID\tNAME\tDELETED")
		for _, sk := range skills {
			fmt.Fprintf(w, "%s\t%s\t%s\n", sk.ID, sk.Name, sk.DeletedAt)
		}
		return w.Flush()
	}

	fmt.Fprintln(w, "ID\tNAME\tSOURCE\tPLATFORMS")
	for _, sk := range skills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sk.ID, sk.Name, sk.DerivedInstallSource(), orDash(joinAgents(sk.EnabledAgents)))
	}
	return w.Flush()
}

func joinAgents(ids []catalogtypes.AgentID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
