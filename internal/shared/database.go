package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// busyTimeoutMS bounds how long a connection waits on a locked database
// before reporting SQLITE_BUSY. Scheduler workers and the CLI can touch the
// same file concurrently.
const busyTimeoutMS = 5000

// NewDatabase opens the SQLite database at path, ":memory:" included.
// Foreign key enforcement is switched on for every connection; the schema
// declares REFERENCES constraints between schedules, executions and timer
// state, and SQLite ignores them unless asked.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase caps the connection pool. SQLite serializes writers, so
// a small pool keeps workers from queueing on SQLITE_BUSY instead of each
// other.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// dsn appends the driver pragmas, preserving any the caller already set.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_foreign_keys=1&_busy_timeout=%d", path, sep, busyTimeoutMS)
}
