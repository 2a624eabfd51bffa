package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smsfilter/core/port/out"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	store_key  TEXT PRIMARY KEY,
	payload    %s NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLStore keeps values in a single kv_store table. It runs on SQLite (the
// process-local fallback) or PostgreSQL.
type SQLStore struct {
	db       *sqlx.DB
	postgres bool
}

// OpenSQLStore opens dsn and ensures the schema. postgres:// and postgresql://
// DSNs use the pgx driver; anything else is treated as a SQLite path.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	driver := "sqlite"
	postgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	if postgres {
		driver = "pgx"
	}

	if !postgres {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, unavailable("open", err)
	}
	if !postgres {
		// one writer at a time keeps read-modify-write serialised
		db.SetMaxOpenConns(1)
	}

	blob := "BLOB"
	if postgres {
		blob = "BYTEA"
	}
	s := &SQLStore{db: db, postgres: postgres}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(kvSchema, blob)); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}
	return s, nil
}

// sqliteBusyTimeout is how long a SQLite write waits on another process's lock
// before failing with SQLITE_BUSY.
const sqliteBusyTimeout = 2 * time.Second

// sqliteDSN appends a busy_timeout pragma unless dsn already sets one.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, sqliteBusyTimeout.Milliseconds())
}

// NewSQLStore wraps an existing connection; the schema must already exist.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, postgres: db.DriverName() == "pgx"}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	query := s.db.Rebind(`SELECT payload FROM kv_store WHERE store_key = ?`)
	if err := s.db.GetContext(ctx, &payload, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return payload, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.upsert(ctx, s.db, key, value); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := s.db.Rebind(`DELETE FROM kv_store WHERE store_key = ?`)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Update reads and writes inside one transaction; on PostgreSQL the row is
// locked with FOR UPDATE.
func (s *SQLStore) Update(ctx context.Context, key string, fn out.UpdateFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	query := `SELECT payload FROM kv_store WHERE store_key = ?`
	if s.postgres {
		query += ` FOR UPDATE`
	}

	var current []byte
	if err := tx.GetContext(ctx, &current, tx.Rebind(query), key); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return unavailable("update", err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := s.upsert(ctx, tx, key, next); err != nil {
		return unavailable("update", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// DB exposes the pool for metrics.
func (s *SQLStore) DB() *sql.DB {
	return s.db.DB
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) upsert(ctx context.Context, ex sqlx.ExtContext, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query := ex.Rebind(`
		INSERT INTO kv_store (store_key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (store_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := ex.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}
