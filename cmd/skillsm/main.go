package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/d0ublecl1ck/skills-manager/pkg/config"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
)

var rootCmd = &cobra.Command{
	Use:   "skillsm",
	Short: "Manage agent skills across coding agent platforms",
	Long: `skillsm keeps a central store of agent skills and distributes them to the
skill directories of every enabled coding agent platform (Claude Code, Codex,
Cursor and friends). Skills found only in a platform directory can be detected
and synced back into the catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}
		return logger.Configure(viper.GetString(config.KeyLogLevel), viper.GetString(config.KeyLogFormat))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	if err := config.Init(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %s\n", err)
	}

	rootCmd.PersistentFlags().String("storage-path", "", "Central skill store location (overrides the saved setting)")
	rootCmd.PersistentFlags().String("db-path", "", "State database location")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag(config.KeyStoragePath, rootCmd.PersistentFlags().Lookup("storage-path"))
	viper.BindPFlag(config.KeyDBPath, rootCmd.PersistentFlags().Lookup("db-path"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
