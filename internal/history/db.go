// Package history records one row per quality run so `aiq history` can
// show recent outcomes. SQLite is the default store; a postgres:// DSN
// selects PostgreSQL through pgx.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and connection setup.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DB wraps the run-history database connection.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// DialectFor reports which backend a DSN selects.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open opens or creates the database named by dsn: a postgres:// URL or a
// SQLite file path (":memory:" for an in-memory database).
func Open(ctx context.Context, dsn string) (*DB, error) {
	dialect := DialectFor(dsn)
	driver := "sqlite"
	if dialect == Postgres {
		driver = "pgx"
	} else if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", dsn, err)
		}
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == SQLite {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dialect == SQLite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	return &DB{conn: conn, dialect: dialect}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// schemaV1 is portable between SQLite and PostgreSQL; timestamps are
// RFC 3339 text written by the caller.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    mode          TEXT NOT NULL,
    plan          TEXT NOT NULL,
    exit_code     INTEGER NOT NULL,
    failed_stages TEXT NOT NULL DEFAULT '',
    diff_only     BOOLEAN NOT NULL DEFAULT FALSE,
    duration_ms   INTEGER NOT NULL,
    started_at    TEXT NOT NULL,
    finished_at   TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
}

// Migrate applies the schema. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	var count int
	err := d.conn.QueryRowContext(ctx, d.rebind("SELECT COUNT(*) FROM schema_version WHERE version = ?"), 1).Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		d.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
		1, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL. Queries
// here contain no string literals with question marks.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
