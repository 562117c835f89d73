package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/catalogcache/internal/durablecache"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Postgres stores entries in <schema>.cache_entries. The table is created by the database migrator.
type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	return &Postgres{
		db:     db,
		schema: schema,

		tracer: otel.Tracer("catalogcache/kvstore/postgres"),
	}
}

func (p *Postgres) table() string {
	return fmt.Sprintf("%s.cache_entries", pq.QuoteIdentifier(p.schema))
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Get")
	defer span.End()

	var value []byte
	err := p.db.GetContext(ctx, &value, fmt.Sprintf("SELECT value FROM %s WHERE key = $1", p.table()), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to select cache entry: %w", err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Set")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s
		(key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`, p.table()),
		key,
		value,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Delete")
	defer span.End()

	_, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = $1", p.table()), key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Keys")
	defer span.End()

	keys := []string{}
	err := p.db.SelectContext(ctx, &keys, fmt.Sprintf("SELECT key FROM %s WHERE starts_with(key, $1) ORDER BY key", p.table()), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to select cache keys: %w", err)
	}
	return keys, nil
}

var _ durablecache.KeyValueStore = (*Postgres)(nil)
