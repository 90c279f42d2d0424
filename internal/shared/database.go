package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN is the SQLite DSN for a process-local database. Nothing is written to disk.
const MemoryDSN = ":memory:"

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewMemoryDatabase opens an in-memory SQLite database and runs all migrations.
//
// Every pooled connection to ":memory:" would get its own empty database, so the pool is pinned to one connection.
func NewMemoryDatabase() (*sql.DB, error) {
	db, err := NewDatabase(MemoryDSN)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(db, 1, 1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	// an idle in-memory connection must never be recycled, or its data goes with it
	db.SetConnMaxLifetime(0)
}
