// Package store is the relational record store behind the chart of accounts.
//
// It wraps a SQLite database (modernc.org/sqlite, no cgo). Every read and write
// happens inside DB.InTx; the callback's error aborts the transaction and is
// returned unchanged. The connection pool is capped at one connection, so
// transactions against the same database are serialized.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/cleared-dev/coa/internal/model"
)

const dateFormat = "2006-01-02"

// DB is an open chart-of-accounts database.
type DB struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	extIDs map[string]model.Reference // external id cache
}

// Tx is a single store transaction.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{db: sqlDB, path: path, extIDs: make(map[string]model.Reference)}
	if err := d.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// InTx runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back otherwise (including on panic). fn's error is returned as is.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			d.InvalidateCaches()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, db: d}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		d.InvalidateCaches()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		d.InvalidateCaches()
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Exec runs a raw statement outside any service transaction.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// InvalidateCaches drops every cached identifier mapping.
func (d *DB) InvalidateCaches() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.extIDs)
}

// RawQuery runs an arbitrary query inside the transaction. Callers close the rows.
func (tx *Tx) RawQuery(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw query: %w", err)
	}
	return rows, nil
}

// Exec runs an arbitrary statement inside the transaction.
func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// InvalidateCaches drops identifier mappings cached by the owning DB.
func (tx *Tx) InvalidateCaches() {
	tx.db.InvalidateCaches()
}

func (tx *Tx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (tx *Tx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := tx.tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
