package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"drivefs/internal/util"
)

// Store is the SQLite-backed metadata store for all owners' trees.
// Structural mutations go through RunInTx; reads may use the bare handle.
type Store struct {
	path string
	db   *sql.DB
	bun  *bun.DB
	lock *flock.Flock
}

// Create creates a new metadata database at path and initializes the schema.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	// Apply all PRAGMAs (WAL, synchronous, foreign keys, busy_timeout, cache).
	// Must be explicit — libsql ignores DSN-based _pragma=value parameters.
	if err := applyPragmas(db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}

	// Create schema (execute statements individually for libsql compatibility)
	if err := execStatements(db, metadataSchema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := execStatements(db, initSchemaInfo, SchemaVersion); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize schema info: %w", err)
	}

	return newStore(path, db)
}

// Open opens an existing metadata database.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s, err := newStore(path, db)
	if err != nil {
		return nil, err
	}

	// Verify it's a drivefs metadata database
	var fileType string
	err = s.bun.NewRaw(`SELECT value FROM schema_info WHERE key = 'type'`).Scan(context.Background(), &fileType)
	if err != nil || fileType != "drivefs" {
		s.Close()
		return nil, fmt.Errorf("not a drivefs metadata database: %s", path)
	}
	return s, nil
}

func newStore(path string, db *sql.DB) (*Store, error) {
	// One writing process per database. The lock file sits next to the
	// database so stale WAL readers in other processes don't race mutations.
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		db.Close()
		return nil, fmt.Errorf("metadata database is in use by another process: %s", path)
	}

	return &Store{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
		lock: fl,
	}, nil
}

// Close releases the process lock and closes the database.
func (s *Store) Close() error {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the bun handle for read-only queries.
func (s *Store) DB() *bun.DB {
	return s.bun
}

// RunInTx runs fn inside a transaction, retrying the whole transaction on
// transient "database is locked" errors. fn must therefore be idempotent.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return util.Retry(ctx,
		func() error {
			return s.bun.RunInTx(ctx, nil, fn)
		},
		util.DatabaseRetryOptions(ctx)...)
}
