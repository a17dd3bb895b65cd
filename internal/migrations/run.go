package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite3  = "sqlite3"
)

// Run накатывает встроенные миграции для драйвера. Повторный запуск ничего не меняет.
// m.Close не вызывается: он закрыл бы переданный db.
func Run(db *sql.DB, driver string) error {
	var (
		dbDriver database.Driver
		name     string
		err      error
	)

	switch driver {
	case DriverPostgres:
		name = "pgx_v5"
		dbDriver, err = pgxv5.WithInstance(db, &pgxv5.Config{})
	case DriverSQLite3:
		name = "sqlite3"
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return fmt.Errorf("unsupported migrations driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("init %s migrate driver: %w", driver, err)
	}

	src, err := iofs.New(files, driver)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
