package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/watch"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	Debounce int
	Schedule string
	Match    string
	AutoSync bool
}

// NewWatchConfig creates a WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		Debounce: 500,
		Schedule: "@hourly",
		Match:    "",
		AutoSync: false,
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch platform directories for new skills",
	Long: `Continuously watch the enabled platform directories and report skills that
appear there without being in the catalog. Expired recycle bin entries are
deleted on a schedule while watching. With --auto-sync new skills are synced
into the catalog right away.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx)
		defer a.Close()

		config := getWatchConfigFromFlags(cmd, a)

		var roots []string
		for _, p := range platforms.Enabled(a.platforms) {
			roots = append(roots, platforms.Roots(p)...)
		}

		w := watch.New(
			watch.Config{
				Roots:    roots,
				Debounce: time.Duration(config.Debounce) * time.Millisecond,
				Schedule: config.Schedule,
				Match:    config.Match,
			},
			a.service,
			func(ctx context.Context) (int, error) {
				return a.manager.CleanExpiredTrash(ctx, a.retentionDays())
			},
			watch.OnCandidates(func(found []catalogtypes.Candidate) {
				reportCandidates(ctx, a, found, config.AutoSync)
			}),
			watch.OnSweep(func(n int) {
				presenter.Info(fmt.Sprintf("Deleted %d expired skill(s) from the recycle bin", n))
			}),
		)

		presenter.Info(fmt.Sprintf("Watching %d platform director(ies)... Press Ctrl+C to stop", len(roots)))
		if err := w.Run(ctx); err != nil {
			presenter.Error(err, "Watch failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.Debounce, "Quiet period in milliseconds before rescanning")
	watchCmd.Flags().String("trash-schedule", defaults.Schedule, "Cron schedule for deleting expired recycle bin entries")
	watchCmd.Flags().StringP("match", "m", defaults.Match, "Only report skills whose name matches a glob")
	watchCmd.Flags().Bool("auto-sync", defaults.AutoSync, "Sync new skills into the catalog automatically")

	rootCmd.AddCommand(watchCmd)
}

// getWatchConfigFromFlags prefers explicit flags over the loaded configuration
func getWatchConfigFromFlags(cmd *cobra.Command, a *app) *WatchConfig {
	config := NewWatchConfig()
	config.Debounce = a.cfg.Watch.Debounce
	if a.cfg.Watch.TrashSchedule != "" {
		config.Schedule = a.cfg.Watch.TrashSchedule
	}

	if cmd.Flags().Changed("debounce") {
		config.Debounce, _ = cmd.Flags().GetInt("debounce")
	}
	if cmd.Flags().Changed("trash-schedule") {
		config.Schedule, _ = cmd.Flags().GetString("trash-schedule")
	}
	if match, err := cmd.Flags().GetString("match"); err == nil {
		config.Match = match
	}
	if autoSync, err := cmd.Flags().GetBool("auto-sync"); err == nil {
		config.AutoSync = autoSync
	}
	return config
}

func reportCandidates(ctx context.Context, a *app, found []catalogtypes.Candidate, autoSync bool) {
	names := make([]string, len(found))
	for i, c := range found {
		names[i] = c.Name
		presenter.Info(fmt.Sprintf("New skill %s in %s", c.Name, strings.Join(c.SourceAgentNames, ", ")))
	}
	if !autoSync {
		return
	}

	records, err := a.service.SyncSelected(ctx, names)
	if err != nil {
		presenter.Error(err, "Auto-sync failed")
		return
	}
	presenter.Success(fmt.Sprintf("Synced %d skill(s)", len(records)))
}
