package reviewstore

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"revtrack/internal/logging"
	"revtrack/internal/review"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// SchemaVersion is the applied migration level and whether the last
// migration was interrupted.
type SchemaVersion struct {
	Version uint
	Dirty   bool
	Latest  uint
}

// Current reports whether the applied schema matches this build.
func (v SchemaVersion) Current() bool {
	return !v.Dirty && v.Version == v.Latest
}

// LatestSchemaVersion returns the highest migration version embedded in
// the binary.
func LatestSchemaVersion() (uint, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}
	var latest uint
	for _, entry := range entries {
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		latest = max(latest, uint(v))
	}
	return latest, nil
}

func (s *Store) newMigrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, classifyError("migrate", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// migrate gates startup on the schema version and applies pending
// migrations. The migrator is not closed: its database driver shares the
// store's connection pool.
func (s *Store) migrate() error {
	latest, err := LatestSchemaVersion()
	if err != nil {
		return err
	}
	m, err := s.newMigrator()
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return classifyError("schema version", err)
	case dirty:
		return review.Wrap(review.ErrSchemaMismatch, component, "migrate",
			fmt.Sprintf("schema version %d is dirty; repair the database before continuing", version), nil)
	case version > latest:
		return review.Wrap(review.ErrSchemaMismatch, component, "migrate",
			fmt.Sprintf("schema version %d is newer than supported version %d", version, latest), nil)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return review.Wrap(review.ErrSchemaMismatch, component, "migrate", "apply migrations", upErr)
	}
	if upErr == nil {
		s.logger.Info("schema migrated",
			logging.Int64("from_version", int64(version)),
			logging.Int64("to_version", int64(latest)),
			logging.String(logging.FieldEventType, "schema_migrated"),
		)
	}
	return nil
}
