package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Dialect names the SQL backend behind a SQLStore
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore implements Store on database/sql. The same queries run on
// PostgreSQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect Dialect
	// nested marks a store handed out by BeginTx on a store that is already
	// inside a transaction; the outermost owner commits or rolls back.
	nested bool
}

// PoolOptions tunes the connection pool
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string, pool PoolOptions) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: DialectPostgres}, nil
}

// Open opens a store for the configured driver
func Open(driver, dsn string, pool PoolOptions) (*SQLStore, error) {
	switch Dialect(driver) {
	case DialectPostgres, "":
		return NewPostgresStore(dsn, pool)
	case DialectSQLite:
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Dialect returns the backend dialect
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLStore) BeginTx(ctx context.Context) (Store, error) {
	if s.tx != nil {
		return &SQLStore{db: s.db, tx: s.tx, dialect: s.dialect, nested: true}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &SQLStore{db: s.db, tx: tx, dialect: s.dialect}, nil
}

// Commit commits the transaction
func (s *SQLStore) Commit() error {
	if s.tx == nil || s.nested {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *SQLStore) Rollback() error {
	if s.tx == nil || s.nested {
		return nil
	}
	return s.tx.Rollback()
}

// rowLock returns the clause that locks selected rows until the transaction
// ends. SQLite serializes writers on its single connection and needs none.
func (s *SQLStore) rowLock() string {
	if s.tx != nil && s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// getDB returns tx if in transaction, otherwise db
func (s *SQLStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// translateError maps driver errors onto the storage sentinels
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, err.Error())
	}
	return err
}

// expectOneRow turns a zero-row update or delete into ErrNotFound
func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// whereBuilder accumulates AND-ed conditions with numbered placeholders
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *whereBuilder) next() int {
	return len(w.args) + 1
}
