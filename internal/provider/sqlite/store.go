package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dwsmith1983/gamedata-etl/internal/provider"
)

var _ provider.RunHistory = (*Store)(nil)

const busyTimeoutMillis = 5000

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is the SQLite-backed pipeline store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the store file at path and verifies the
// connection. Foreign keys, WAL journaling and a busy timeout are enabled on
// every connection, and transactions begin IMMEDIATE so two writers queue on
// the file lock instead of failing mid-transaction.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, busyTimeoutMillis)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates every table, index and trigger that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StoreError wraps any failure to read or write the store.
type StoreError struct {
	Op         string
	Entity     string
	Constraint bool
	Err        error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
	}
	if e.Constraint {
		b.WriteString(" (constraint violation)")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind identifies the error in run history.
func (e *StoreError) Kind() string { return "StoreError" }

func storeErr(op, entity string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, Constraint: isConstraintViolation(err), Err: err}
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
