package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	UpSQL       string
	DownSQL     string
}

// Migrator handles database migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new migration handler.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

var migrationFileRe = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// LoadMigrations loads all migrations from the embedded filesystem.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	migrations := make(map[int]*Migration)

	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		// Filename format: 001_description.up.sql / 001_description.down.sql
		matches := migrationFileRe.FindStringSubmatch(filepath.Base(path))
		if len(matches) != 4 {
			return nil
		}

		version, _ := strconv.Atoi(matches[1])
		description := strings.ReplaceAll(matches[2], "_", " ")
		direction := matches[3]

		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", path, err)
		}

		if _, exists := migrations[version]; !exists {
			migrations[version] = &Migration{
				Version:     version,
				Description: description,
			}
		}

		if direction == "up" {
			migrations[version].UpSQL = string(content)
		} else {
			migrations[version].DownSQL = string(content)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking migrations: %w", err)
	}

	result := make([]Migration, 0, len(migrations))
	for _, mig := range migrations {
		result = append(result, *mig)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result, nil
}

// CurrentVersion returns the current schema version, zero before the first
// migration has been applied.
func (m *Migrator) CurrentVersion() (int, error) {
	var tableName string

	err := m.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("checking schema_migrations table: %w", err)
	}

	var version int

	err = m.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("getting current version: %w", err)
	}

	return version, nil
}

// MigrateUp applies all pending migrations.
func (m *Migrator) MigrateUp() error {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	currentVersion, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= currentVersion {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("migration %d has no up SQL", mig.Version)
		}

		if err := m.runMigration(mig, directionUp); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}

	return nil
}

// MigrateDown rolls back the last applied migration.
func (m *Migrator) MigrateDown() error {
	migrations, err := m.LoadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	currentVersion, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	for i := range migrations {
		if migrations[i].Version != currentVersion {
			continue
		}

		if migrations[i].DownSQL == "" {
			return fmt.Errorf("migration %d has no down SQL", currentVersion)
		}

		if err := m.runMigration(migrations[i], directionDown); err != nil {
			return fmt.Errorf("rolling back migration %d (%s): %w",
				currentVersion, migrations[i].Description, err)
		}

		return nil
	}

	return fmt.Errorf("migration %d not found", currentVersion)
}

type direction int

const (
	directionUp direction = iota
	directionDown
)

// runMigration executes a migration script and records (or clears) its
// version in schema_migrations, all in one transaction.
func (m *Migrator) runMigration(mig Migration, dir direction) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	script := mig.UpSQL
	if dir == directionDown {
		script = mig.DownSQL
	}

	if _, err = tx.Exec(script); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	if dir == directionUp {
		_, err = tx.Exec(
			`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
			mig.Version, mig.Description,
		)
	} else {
		_, err = tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, mig.Version)
	}

	if err != nil {
		return fmt.Errorf("recording migration version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
