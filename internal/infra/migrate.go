// README: Startup migrations from the migrations/ directory via golang-migrate.
package infra

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies pending migrations. A missing migrations directory is not an
// error so tests and tooling can run against an already-provisioned database.
func Migrate(dsn string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	path := filepath.Join(cwd, "migrations")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
