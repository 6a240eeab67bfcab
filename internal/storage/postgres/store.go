package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapledger/internal/model"
	"swapledger/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS engine_state (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS engine_events (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	identity TEXT NOT NULL DEFAULT '',
	pool_id BIGINT NOT NULL DEFAULT 0,
	asset_in TEXT NOT NULL DEFAULT '',
	asset_out TEXT NOT NULL DEFAULT '',
	amount_in BIGINT NOT NULL DEFAULT 0,
	amount_out BIGINT NOT NULL DEFAULT 0,
	detail TEXT NOT NULL DEFAULT '',
	ts BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for engine state and events.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.KV = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the state and event tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("state key required")
	}
	var value []byte
	row := s.pool.QueryRow(ctx, `SELECT value FROM engine_state WHERE key=$1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, []storage.Entry{{Key: key, Value: value}})
}

// SetMany upserts every entry in one transaction.
func (s *Store) SetMany(ctx context.Context, entries []storage.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		if e.Key == "" {
			return fmt.Errorf("state key required")
		}
		batch.Queue(`
			INSERT INTO engine_state (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = now()
		`, e.Key, e.Value)
	}

	br := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Emit inserts events, ignoring ids that were already stored.
func (s *Store) Emit(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO engine_events (
				id, kind, identity, pool_id, asset_in, asset_out, amount_in, amount_out, detail, ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (id) DO NOTHING
		`,
			ev.ID,
			string(ev.Kind),
			string(ev.Identity),
			int64(ev.PoolID),
			string(ev.AssetIn),
			string(ev.AssetOut),
			ev.AmountIn,
			ev.AmountOut,
			ev.Detail,
			int64(ev.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
