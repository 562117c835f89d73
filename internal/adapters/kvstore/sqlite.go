package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SQLite persists entries in a single table in a local database file
type SQLite struct {
	db *sqlx.DB

	tracer trace.Tracer
}

func NewSQLite(path string) (*SQLite, error) {
	// Single writer; WAL lets reads proceed during writes
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	return &SQLite{
		db:     db,
		tracer: otel.Tracer("catalogcache/kvstore/sqlite"),
	}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := s.tracer.Start(ctx, "SQLite.Get")
	defer span.End()

	var value []byte
	err := s.db.GetContext(ctx, &value, "SELECT value FROM cache_entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to select cache entry: %w", err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := s.tracer.Start(ctx, "SQLite.Set")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cache_entries
		(key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key)
		DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "SQLite.Delete")
	defer span.End()

	_, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "SQLite.Keys")
	defer span.End()

	keys := []string{}
	// instr avoids having to escape LIKE wildcards in the prefix
	err := s.db.SelectContext(ctx, &keys, "SELECT key FROM cache_entries WHERE instr(key, ?) = 1 ORDER BY key", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to select cache keys: %w", err)
	}
	return keys, nil
}

var _ durablecache.KeyValueStore = (*SQLite)(nil)
