// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"storepos/m/internal/database"
	"storepos/m/internal/migrations"
	"storepos/m/internal/store"
)

// NewStore returns a migrated store backed by a file in t.TempDir.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	db, err := database.Connect(database.FileDSN(filepath.Join(t.TempDir(), "pos.db")))
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	s := store.New(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// InsertProduct adds a catalog row and returns its id.
func InsertProduct(t testing.TB, s *store.Store, name, price string) int64 {
	t.Helper()
	return insert(t, s, `INSERT INTO products (name, price, category) VALUES (?, ?, '')`, name, price)
}

// InsertUser adds an account with an unusable password hash and returns its id.
func InsertUser(t testing.TB, s *store.Store, username, role string) int64 {
	t.Helper()
	return insert(t, s, `INSERT INTO users (name, username, password_hash, role) VALUES (?, ?, 'x', ?)`, username, username, role)
}

// Count returns the number of rows in table.
func Count(t testing.TB, s *store.Store, table string) int {
	t.Helper()
	var n int
	err := s.Read(context.Background(), func(q store.Querier) error {
		return q.GetContext(context.Background(), &n, `SELECT COUNT(*) FROM `+table)
	})
	require.NoError(t, err)
	return n
}

func insert(t testing.TB, s *store.Store, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	err := s.Write(context.Background(), func(tx *sqlx.Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	require.NoError(t, err)
	return id
}
