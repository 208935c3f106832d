package postgres

import (
	"database/sql"
	"embed"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"log/slog"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies every pending migration to the database at dsn.
func RunMigrations(dsn, schema string) error {
	const op = "storage.postgres.RunMigrations"

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{SchemaName: schema})
	if err != nil {
		return errors.Wrap(err, op)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, op)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, op)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, op)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, op)
	}

	slog.Info("Migrations applied", "version", version, "dirty", dirty)

	return nil
}
