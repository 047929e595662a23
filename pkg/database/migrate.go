package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the audit schema up to the newest migration in
// migrationsPath. A schema left dirty by an earlier failed run is refused.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) error {
	absPath, err := migrationsDir(migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+absPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	from, dirty, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d, fix it manually before migrating", from)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("Schema is up to date", "version", from)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	to, _, err := schemaVersion(m)
	if err != nil {
		return err
	}

	logger.Info("Migrations applied", "from_version", from, "to_version", to, "path", absPath)
	return nil
}

// migrationsDir resolves path to an absolute directory that exists.
func migrationsDir(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("migrations directory %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("migrations path %s is not a directory", absPath)
	}

	return absPath, nil
}

// schemaVersion reports the applied version, zero when nothing was applied yet.
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
