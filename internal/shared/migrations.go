package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration pairs the up and down scripts of one schema version. Files are
// named NNNN_description_up.sql / NNNN_description_down.sql and both halves
// must exist.
type Migration struct {
	Version int
	Up      string
	Down    string
}

// loadMigrations assembles the embedded scripts into versioned pairs,
// sorted ascending.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	pairs := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		stem, ok := strings.CutSuffix(entry.Name(), ".sql")
		if !ok {
			continue
		}
		version, direction, ok := splitMigrationName(stem)
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		pair := pairs[version]
		if pair == nil {
			pair = &Migration{Version: version}
			pairs[version] = pair
		}
		switch direction {
		case "up":
			pair.Up = string(content)
		case "down":
			pair.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Up == "" || pair.Down == "" {
			return nil, fmt.Errorf("migration version %d is missing its up or down script", pair.Version)
		}
		migrations = append(migrations, *pair)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// splitMigrationName extracts the version and direction from a filename
// stem like "0000_create_tables_up".
func splitMigrationName(stem string) (version int, direction string, ok bool) {
	head, _, found := strings.Cut(stem, "_")
	if !found {
		return 0, "", false
	}
	version, err := strconv.Atoi(head)
	if err != nil {
		return 0, "", false
	}

	switch {
	case strings.HasSuffix(stem, "_up"):
		return version, "up", true
	case strings.HasSuffix(stem, "_down"):
		return version, "down", true
	}
	return 0, "", false
}

// RunMigrations brings the database up to the latest schema version,
// tracking applied versions in schema_migrations. Already-applied versions
// are left alone, so running it repeatedly is safe.
func RunMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range migrations {
		var applied bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", migration.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			continue
		}

		err = inTransaction(db, migration.Up, func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// RollbackMigration reverts the highest applied schema version.
func RollbackMigration(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read current version: %w", err)
	}
	if !current.Valid {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, migration := range migrations {
		if int64(migration.Version) != current.Int64 {
			continue
		}
		err := inTransaction(db, migration.Down, func(tx *sql.Tx) error {
			_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", migration.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
		}
		return nil
	}

	return fmt.Errorf("migration version %d not found", current.Int64)
}

// inTransaction runs a migration script statement by statement inside one
// transaction, then lets record update the version bookkeeping before the
// commit.
func inTransaction(db *sql.DB, script string, record func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(script) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}

	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements breaks a script on semicolons, dropping -- comments and
// blank fragments. Enough for our DDL; none of the scripts embed literal
// semicolons.
func splitStatements(script string) []string {
	var statements []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if idx := strings.Index(line, "--"); idx >= 0 {
				line = line[:idx]
			}
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
