package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DefaultDSN points at the shop database next to the binary with foreign keys enforced.
const DefaultDSN = "file:sales_control.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Connect opens a SQLite database using the provided DSN.
// A single connection keeps SQLite writers from contending with each other.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// FileDSN builds a DSN for a database file with the pragmas the app relies on.
func FileDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
