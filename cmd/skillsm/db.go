package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/d0ublecl1ck/skills-manager/pkg/config"
	"github.com/d0ublecl1ck/skills-manager/pkg/db"
	"github.com/d0ublecl1ck/skills-manager/pkg/db/migrations"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "State database commands",
	Long:  `Commands for inspecting the skillsm state database and its migrations.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		sqlDB, path := mustOpenStateDB(ctx)
		defer sqlDB.Close()

		applied, err := db.NewMigrationRunner(sqlDB).GetAppliedVersions(ctx)
		if err != nil {
			presenter.Error(err, "Failed to get migration status")
			os.Exit(1)
		}
		appliedMap := make(map[int64]bool, len(applied))
		for _, v := range applied {
			appliedMap[v] = true
		}

		all := migrations.All()
		fmt.Printf("Database: %s\n\n", path)
		count := 0
		for _, m := range all {
			status := "[ ]"
			if appliedMap[m.Version] {
				status = "[✓]"
				count++
			}
			fmt.Printf("%s %d - %s\n", status, m.Version, m.Description)
		}
		fmt.Printf("\nApplied: %d/%d migrations\n", count, len(all))

		if err := db.VerifyConfiguration(sqlDB); err != nil {
			presenter.Warning(fmt.Sprintf("Database configuration: %v", err))
		}
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last database migration",
	Long: `Roll back the most recently applied migration. Tables dropped by the rollback
lose their data; the next skillsm command applies the migration again.`,
	Run: func(cmd *cobra.Command, _ []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		sqlDB, _ := mustOpenStateDB(ctx)
		defer sqlDB.Close()

		runner := db.NewMigrationRunner(sqlDB)
		applied, err := runner.GetAppliedVersions(ctx)
		if err != nil {
			presenter.Error(err, "Failed to get migration status")
			os.Exit(1)
		}
		if len(applied) == 0 {
			presenter.Warning("No migrations to roll back")
			return
		}

		last := applied[len(applied)-1]
		if !yes && !presenter.Confirm(fmt.Sprintf("Roll back migration %d?", last)) {
			presenter.Info("Aborted.")
			return
		}
		if err := runner.Rollback(ctx, migrations.All()); err != nil {
			presenter.Error(err, "Failed to roll back migration")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Rolled back migration %d", last))
	},
}

// mustOpenStateDB opens the state database without applying migrations
func mustOpenStateDB(ctx context.Context) (*sqlx.DB, string) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		presenter.Error(err, "Invalid configuration")
		os.Exit(1)
	}
	path, err := resolveDBPath(cfg)
	if err != nil {
		presenter.Error(err, "Failed to locate the state database")
		os.Exit(1)
	}
	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		presenter.Error(err, "Failed to open the state database")
		os.Exit(1)
	}
	return sqlDB, path
}

func init() {
	dbRollbackCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	rootCmd.AddCommand(dbCmd)
}
