// Package migrate applies the embedded PostgreSQL schema migrations.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Up applies every pending migration. An already current schema is not an error.
func Up(dsn string, logger *slog.Logger) error {
	m, closeFn, err := open(dsn)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/migrate: up: %w", err)
	}
	logVersion(m, logger, "migrations applied")
	return nil
}

// Down rolls back the given number of migrations. steps <= 0 rolls back everything.
func Down(dsn string, steps int, logger *slog.Logger) error {
	m, closeFn, err := open(dsn)
	if err != nil {
		return err
	}
	defer closeFn()

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/migrate: down: %w", err)
	}
	logVersion(m, logger, "migrations rolled back")
	return nil
}

// Sources lists the embedded migration file names.
func Sources() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func open(dsn string) (*migrate.Migrate, func(), error) {
	if dsn == "" {
		return nil, nil, errors.New("platform/migrate: PG_DSN not set")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("platform/migrate: source: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("platform/migrate: open: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("platform/migrate: driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("platform/migrate: init: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

func logVersion(m *migrate.Migrate, logger *slog.Logger, msg string) {
	if logger == nil {
		return
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Warn("read migration version", slog.Any("error", err))
		return
	}
	logger.Info(msg, slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
}
