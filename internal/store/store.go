// Package store serialises access to the embedded database.
//
// Every mutation runs inside Write, which holds one process-wide lock for the
// whole transaction; reads share the lock through Read. Code running inside
// Write must only use the transaction it was given.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"storepos/m/internal/apperr"
)

// Querier is the subset of *sqlx.DB and *sqlx.Tx used by read paths.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store wraps the database with a single-writer lock.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// New constructs a Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for startup tasks such as migrations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Write runs fn in a transaction under the write lock. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) Write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Persistence("unable to start transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("unable to commit transaction", err)
	}
	return nil
}

// Read runs fn under the shared lock so it never observes a half-written
// transaction.
func (s *Store) Read(ctx context.Context, fn func(q Querier) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.db)
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NotFound converts sql.ErrNoRows into a NotFound error with message and wraps
// anything else as a persistence failure.
func NotFound(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(message)
	}
	return apperr.Persistence("unable to load record", err)
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RequireAffected returns a NotFound error when res touched no rows.
func RequireAffected(res sql.Result, message string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence("unable to read result", err)
	}
	if n == 0 {
		return apperr.NotFound(message)
	}
	return nil
}
