package cmd

import (
	"fmt"
	"strconv"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/database"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the release store schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			return m.Up()
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the last migration, or the given number of steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			m, err := newMigrator()
			if err != nil {
				return err
			}
			return m.Down(steps)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	})

	return migrateCmd
}

func newMigrator() (*database.Migrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.Enabled {
		return nil, &config.ValidationError{Field: "database.enabled", Message: "migrations need the database enabled"}
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Running migrations",
		logger.String("host", cfg.Database.Host),
		logger.String("database", cfg.Database.Name),
		logger.String("migrations_path", cfg.Database.MigrationsPath),
	)
	return database.NewMigrator(cfg.Database, log), nil
}
