package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/justsurfingit/resume-builder/internal/database"
	"github.com/justsurfingit/resume-builder/internal/legacy"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	legacyURL    string
	legacyDriver string
	mapFile      string
	batchSize    int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy users and resumes from the previous major version's database",
	Long: `Copy users and resumes from the previous major version's database.

Users must be migrated before resumes: the legacy to new user id map
written by "migrate users" is read by "migrate resumes". Both steps skip
rows that were already copied, so an interrupted run can be repeated.`,
}

var migrateUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Migrate users, accounts and two-factor settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := newMigrator()
		if err != nil {
			return err
		}
		defer closeFn()
		_, err = m.MigrateUsers(cmd.Context())
		return err
	},
}

var migrateResumesCmd = &cobra.Command{
	Use:   "resumes",
	Short: "Migrate resumes and their statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := newMigrator()
		if err != nil {
			return err
		}
		defer closeFn()
		_, err = m.MigrateResumes(cmd.Context())
		return err
	},
}

var migrateAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Migrate users, then resumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := newMigrator()
		if err != nil {
			return err
		}
		defer closeFn()
		if _, err := m.MigrateUsers(cmd.Context()); err != nil {
			return err
		}
		_, err = m.MigrateResumes(cmd.Context())
		return err
	},
}

func init() {
	f := migrateCmd.PersistentFlags()
	f.StringVar(&legacyURL, "legacy-url", "", "connection string of the legacy database (required)")
	f.StringVar(&legacyDriver, "legacy-driver", "postgres", "driver of the legacy database (postgres or sqlite)")
	f.StringVar(&mapFile, "map-file", "user-id-map.json", "file holding the legacy to new user id map")
	f.IntVar(&batchSize, "batch-size", legacy.DefaultBatchSize, "rows read per query")
	_ = migrateCmd.MarkPersistentFlagRequired("legacy-url")

	migrateCmd.AddCommand(migrateUsersCmd, migrateResumesCmd, migrateAllCmd)
}

func newMigrator() (*legacy.Migrator, func(), error) {
	legacyDB, err := sqlx.Connect(legacyDriver, legacyURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to legacy db: %w", err)
	}
	logger.Info("connected to legacy database", zap.String("driver", legacyDriver))

	db, err := database.Connect(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		legacyDB.Close()
		return nil, nil, err
	}

	m := legacy.NewMigrator(legacyDB, db, mapFile, logger)
	m.BatchSize = batchSize
	closeFn := func() {
		legacyDB.Close()
		database.Close(db)
	}
	return m, closeFn, nil
}
