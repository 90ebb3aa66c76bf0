package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"codedrop/internal/config"
	"codedrop/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect metadata schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inspect {
				st, err := store.Open(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			db, err := openRawDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			plan, err := store.MigrationPlan(db)
			if err != nil {
				return fmt.Errorf("inspect migrations: %w", err)
			}
			if *structured {
				return writeJSON(plan)
			}

			_ = writePlain("current version: %d\n", plan.CurrentVersion)
			_ = writePlain("available version: %d\n", plan.AvailableVersion)
			if len(plan.Pending) == 0 {
				return writePlain("no pending migrations\n")
			}
			_ = writePlain("pending migrations: %d\n", len(plan.Pending))
			for _, m := range plan.Pending {
				_ = writePlain("  %d: %s\n", m.Version, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show pending migrations without applying them")
	cmd.Flags().BoolVar(&inspect, "dry-run", false, "alias for --inspect")

	return cmd
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
