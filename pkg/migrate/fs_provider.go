package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultMigrationTable is used when no tracking table name is given
const DefaultMigrationTable = "schema_migrations"

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from the top level of an fs.FS. Both embedded
// migration sets and directories on disk are served through it.
type FSProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a provider reading migrations from fsys
func NewFSProvider(fsys fs.FS, migrationTable string, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = DefaultMigrationTable
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// NewFileProvider creates a provider reading migrations from a directory
func NewFileProvider(dir string, migrationTable string, dbDriver string) *FSProvider {
	return NewFSProvider(os.DirFS(dir), migrationTable, dbDriver)
}

// GetMigrations loads and pairs every up/down file, sorted by version
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		matches := migrationFileRegex.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", e.Name(), err)
		}

		content, err := fs.ReadFile(p.fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(db *sql.DB) error {
	column := "DATETIME"
	if p.dbDriver == "postgres" {
		column = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)`, p.migrationTable, column)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one. Rows above it are removed
// so that rollbacks lower MAX(version).
func (p *FSProvider) SetVersion(db DB, version int) error {
	placeholder := "?"
	if p.dbDriver == "postgres" {
		placeholder = "$1"
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE version > %s", p.migrationTable, placeholder)
	if _, err := db.Exec(del, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	var ins string
	if p.dbDriver == "postgres" {
		ins = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP`, p.migrationTable)
	} else {
		ins = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)`, p.migrationTable)
	}
	if _, err := db.Exec(ins, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
