package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flipfinder/backend/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                    TEXT PRIMARY KEY,
	email                 TEXT NOT NULL UNIQUE,
	subscription_key_hash TEXT NOT NULL,
	plan                  TEXT NOT NULL DEFAULT '',
	expires_at            TIMESTAMPTZ NOT NULL,
	active                BOOLEAN NOT NULL DEFAULT TRUE,
	usage_limit           INTEGER NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_usage (
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	period     TEXT NOT NULL,
	operation  TEXT NOT NULL,
	calls      INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, period, operation)
);`

// PostgresStore persists accounts and usage counters in Postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and applies the schema
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

const accountColumns = `id, email, subscription_key_hash, plan, expires_at, active, usage_limit, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.SubscriptionKeyHash, &a.Plan, &a.ExpiresAt, &a.Active, &a.UsageLimit, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

// GetByID returns the account with the given id or domain.ErrNotFound
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByEmail returns the account registered under email or domain.ErrNotFound
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

// Upsert inserts the account or replaces the stored row with the same id
func (s *PostgresStore) Upsert(ctx context.Context, a *domain.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			subscription_key_hash = EXCLUDED.subscription_key_hash,
			plan = EXCLUDED.plan,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active,
			usage_limit = EXCLUDED.usage_limit`,
		a.ID, a.Email, a.SubscriptionKeyHash, a.Plan, a.ExpiresAt, a.Active, a.UsageLimit, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// GetUsage returns the calls counted for the account in period, across operations
func (s *PostgresStore) GetUsage(ctx context.Context, accountID, period string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(calls), 0) FROM api_usage WHERE account_id = $1 AND period = $2`,
		accountID, period,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	return total, nil
}

// IncrementUsage bumps the operation counter and returns the new period total in one transaction
func (s *PostgresStore) IncrementUsage(ctx context.Context, accountID, period, operation string) (int, error) {
	var total int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO api_usage (account_id, period, operation, calls, updated_at)
			VALUES ($1, $2, $3, 1, now())
			ON CONFLICT (account_id, period, operation)
			DO UPDATE SET calls = api_usage.calls + 1, updated_at = now()`,
			accountID, period, operation,
		); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(calls), 0) FROM api_usage WHERE account_id = $1 AND period = $2`,
			accountID, period,
		).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return total, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
