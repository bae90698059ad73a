package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the default durable store: a single-file database next to the
// terminal binary. Survives reloads and crashes of the terminal process.
type SQLite struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQLite creates or opens the store at the given path.
// Idempotent - safe to call on an existing database file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under the terminal's synchronous persistence pattern.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get implements KV.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.sb.
		Select("value").
		From("kv_store").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements KV.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	query, args, err := s.sb.
		Insert("kv_store").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove implements KV.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	query, args, err := s.sb.
		Delete("kv_store").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

var _ KV = (*SQLite)(nil)
