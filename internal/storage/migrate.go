package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sqliteMigrations embed.FS

// ApplyMigrations runs every pending up migration from dir in fsys against
// the database opened by open. backend only labels errors and logs.
func ApplyMigrations(backend string, fsys fs.FS, dir string, open func(src source.Driver) (*migrate.Migrate, error)) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("%s: load migrations: %w", backend, err)
	}
	m, err := open(src)
	if err != nil {
		return fmt.Errorf("%s: create migrator: %w", backend, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: apply migrations: %w", backend, err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Debug("Schema ready", "backend", backend, "version", version, "dirty", dirty)
	}
	return nil
}

// RunMigrations brings the SQLite file at dbPath up to date. Migrations get
// their own connection so the repository's single connection stays free.
func RunMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	return ApplyMigrations("sqlite", sqliteMigrations, "migrations", func(src source.Driver) (*migrate.Migrate, error) {
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", src, "sqlite", driver)
	})
}
