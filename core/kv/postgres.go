package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Scope backed by a single key-value table, an alternative
// durable scope for deployments that already run Postgres and don't want a
// second datastore.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures the Postgres scope.
type PostgresOption func(*Postgres)

// WithTable overrides the backing table name (default "authkit_kv").
func WithTable(table string) PostgresOption {
	return func(p *Postgres) {
		if table != "" {
			p.table = table
		}
	}
}

// NewPostgres creates a Postgres-backed scope on an existing pool.
// The backing table must exist:
//
//	CREATE TABLE authkit_kv (
//		key   text PRIMARY KEY,
//		value text NOT NULL
//	);
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) *Postgres {
	p := &Postgres{pool: pool, table: "authkit_kv"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the stored value for key, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table)
	if err := p.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set upserts value under key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, p.table)
	_, err := p.pool.Exec(ctx, query, key, value)
	return err
}

// Delete removes key; absent keys are ignored.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	_, err := p.pool.Exec(ctx, query, key)
	return err
}
