package database

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:blankimports // File source driver
	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
)

// Migrator applies the schema in the migrations directory.
type Migrator struct {
	cfg config.DatabaseConfig
	log logger.Logger
}

// NewMigrator creates a Migrator.
func NewMigrator(cfg config.DatabaseConfig, log logger.Logger) *Migrator {
	return &Migrator{cfg: cfg, log: log}
}

// sourceURL returns the file:// URL of the migrations directory, absolute when it can be resolved.
func (m *Migrator) sourceURL() string {
	path := m.cfg.MigrationsPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

func (m *Migrator) open() (*migrate.Migrate, func(), error) {
	db, err := sqlx.Open("postgres", m.cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database connection: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create postgres driver: %w", err)
	}

	mig, err := migrate.NewWithDatabaseInstance(m.sourceURL(), "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return mig, func() {
		_, _ = mig.Close()
		_ = db.Close()
	}, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	mig, closeFn, err := m.open()
	if err != nil {
		return err
	}
	defer closeFn()

	if err = mig.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("No pending migrations", logger.String("migrations_path", m.cfg.MigrationsPath))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	m.log.Info("Migrations applied successfully", logger.String("migrations_path", m.cfg.MigrationsPath))
	return nil
}

// Down rolls back steps migrations, one when steps is not positive.
func (m *Migrator) Down(steps int) error {
	mig, closeFn, err := m.open()
	if err != nil {
		return err
	}
	defer closeFn()

	if steps <= 0 {
		steps = 1
	}
	if err = mig.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("No migrations to rollback", logger.String("migrations_path", m.cfg.MigrationsPath))
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	m.log.Info("Migrations rolled back successfully",
		logger.String("migrations_path", m.cfg.MigrationsPath),
		logger.Int("steps", steps),
	)
	return nil
}

// Version returns the applied schema version. A database without migrations reports 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	mig, closeFn, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err = mig.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}
