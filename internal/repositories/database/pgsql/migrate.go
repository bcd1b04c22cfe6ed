package pgsql

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations brings the schema at databaseURL up to the latest embedded
// version. A database left dirty by an earlier failed run is reported as an
// error rather than forced.
func RunMigrations(databaseURL string, logger *slog.Logger) (err error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: ping: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "ledger_schema_migrations"})
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate: postgres driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate: embedded source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate: init: %w", err)
	}
	// m.Close also closes db through the driver.
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return errors.New("migrate: schema is dirty, fix it manually before starting")
	}

	switch upErr := m.Up(); {
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info("Schema up to date")
	case upErr != nil:
		return fmt.Errorf("migrate: up: %w", upErr)
	default:
		version, _, _ := m.Version()
		logger.Info("Schema migrated", slog.Uint64("version", uint64(version)))
	}
	return nil
}
