package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	UpSeparator   = "-- +migrate Up"
	DownSeparator = "-- +migrate Down"
)

// Migration is one embedded SQL file with a Down section followed by an Up section.
type Migration struct {
	ID  string
	SQL string
}

// RunMigrations opens the database described by cfg and applies every pending migration.
func RunMigrations(cfg config.DatabaseConfig, migrations []Migration) error {
	database, err := NewSQLiteDBFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("error creating DB: %w", err)
	}
	defer database.Close()

	return RunMigrationsDB(logger.GetDefaultLogger(), database, migrations, migrate.Up)
}

// RunMigrationsDB applies migrations on an open database in the given direction.
func RunMigrationsDB(log *logger.Logger, database *sql.DB, migrations []Migration,
	dir migrate.MigrationDirection) error {
	source, err := memorySource(migrations)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(source.Migrations))
	for _, m := range source.Migrations {
		ids = append(ids, m.Id)
	}

	log.Debugf("running migrations: %s", strings.Join(ids, ", "))

	n, err := migrate.Exec(database, "sqlite3", source, dir)
	if err != nil {
		return fmt.Errorf("error executing migrations %s: %w", strings.Join(ids, ", "), err)
	}

	log.Infof("successfully ran %d migrations", n)
	return nil
}

func memorySource(migrations []Migration) (*migrate.MemoryMigrationSource, error) {
	source := &migrate.MemoryMigrationSource{}

	for _, m := range migrations {
		parts := strings.Split(m.SQL, UpSeparator)
		if len(parts) != 2 { //nolint:mnd
			return nil, fmt.Errorf("migration %s must contain exactly one '%s' separator", m.ID, UpSeparator)
		}

		down := parts[0]
		if idx := strings.Index(down, DownSeparator); idx != -1 {
			down = down[idx+len(DownSeparator):]
		}

		source.Migrations = append(source.Migrations, &migrate.Migration{
			Id:   m.ID,
			Up:   []string{strings.TrimSpace(parts[1])},
			Down: []string{strings.TrimSpace(down)},
		})
	}

	return source, nil
}
