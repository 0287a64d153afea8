package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. It is satisfied
// by *pgxpool.Pool and by pgxmock pools.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore implements Store using pgxpool, for kiosks that keep their
// state in a shared server-side database.
type PostgresStore struct {
	*recordStore
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	s := &PostgresStore{pool: pool}
	s.recordStore = &recordStore{name: "postgres", backend: &pgBackend{pool: pool}}
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leadscan_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the underlying pool.
func (s *PostgresStore) Pool() Pool {
	return s.pool
}

type pgBackend struct {
	pool Pool
}

func (b *pgBackend) withTx(ctx context.Context, fn func(tx kvTx) error) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := t.tx.QueryRow(ctx, `SELECT value FROM leadscan_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (t *pgTx) put(ctx context.Context, key string, value []byte) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO leadscan_kv (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	return err
}
