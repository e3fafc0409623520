package state

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func init() {
	_ = registry.RegisterStateBackend("postgres", func(ctx context.Context, cfg *config.StateConfig) (core.StateBackend, error) {
		return NewPostgresBackend(ctx, cfg.DSN, cfg.Table, cfg.TapID)
	})
}

// PgxPool is the subset of pgxpool.Pool used by PostgresBackend.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresBackend keeps one state row per tap id in a jsonb column.
type PostgresBackend struct {
	pool  PgxPool
	table string
	tapID string
}

// NewPostgresBackend connects to dsn and creates the state table if needed.
func NewPostgresBackend(ctx context.Context, dsn, table, tapID string) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state dsn is required").WithDetail("field", "state.dsn")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse state dsn")
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "connect to state database")
	}

	b := NewPostgresBackendWithPool(pool, table, tapID)
	if err := b.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendWithPool wraps an existing pool.
func NewPostgresBackendWithPool(pool PgxPool, table, tapID string) *PostgresBackend {
	if table == "" {
		table = "tap_state"
	}
	if tapID == "" {
		tapID = "tap-taboola"
	}
	return &PostgresBackend{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		tapID: tapID,
	}
}

func (b *PostgresBackend) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	tap_id text PRIMARY KEY,
	state jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, b.table)
	if _, err := b.pool.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "create state table")
	}
	return nil
}

// Load returns the stored document, or nil when the tap has no row yet.
func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx, fmt.Sprintf(`SELECT state::text FROM %s WHERE tap_id = $1`, b.table), b.tapID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "load state row")
	}
	return data, nil
}

// Save upserts the document.
func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (tap_id, state, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (tap_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, b.table)
	if _, err := b.pool.Exec(ctx, stmt, b.tapID, string(data)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "save state row")
	}
	return nil
}

// Close releases the pool.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
