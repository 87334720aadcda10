package postgres

import (
	"context"
	"embed"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate applies all pending schema migrations
func Migrate(ctx context.Context, db *DB, log *logger.Logger) error {
	if err := setupGoose(log); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db.DB.DB, migrationsDir); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to apply database migrations").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// MigrationStatus logs the applied state of every migration without changing the schema
func MigrationStatus(ctx context.Context, db *DB, log *logger.Logger) error {
	if err := setupGoose(log); err != nil {
		return err
	}

	if err := goose.StatusContext(ctx, db.DB.DB, migrationsDir); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read migration status").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func setupGoose(log *logger.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(log)
	if err := goose.SetDialect("postgres"); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrSystem)
	}
	return nil
}
