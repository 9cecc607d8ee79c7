package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/tourney/internal/database"
	"github.com/jackc/pgx/v5"
)

// PostgresAttemptStore persists attempt collections in the kv_store table
type PostgresAttemptStore struct {
	db *database.DB
}

// NewPostgresAttemptStore creates a new PostgresAttemptStore
func NewPostgresAttemptStore(db *database.DB) *PostgresAttemptStore {
	return &PostgresAttemptStore{db: db}
}

// Get returns the blob stored under name, or nil if the row does not exist
func (s *PostgresAttemptStore) Get(ctx context.Context, name string) ([]byte, error) {
	query := `SELECT value::text FROM kv_store WHERE name = $1`

	var value string
	err := s.db.Pool.QueryRow(ctx, query, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read kv_store entry: %w", err)
	}

	return []byte(value), nil
}

// Set upserts the blob stored under name
func (s *PostgresAttemptStore) Set(ctx context.Context, name string, value []byte) error {
	query := `
		INSERT INTO kv_store (name, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := s.db.Pool.Exec(ctx, query, name, string(value)); err != nil {
		return fmt.Errorf("failed to write kv_store entry: %w", database.MapPostgresError(err))
	}

	return nil
}

// Update locks the row for name and applies fn inside one transaction, so replicas sharing
// the database never interleave their read-modify-write cycles.
func (s *PostgresAttemptStore) Update(ctx context.Context, name string, fn func(current []byte) ([]byte, error)) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		// Make sure there is a row to lock
		_, err := tx.Exec(ctx, `
			INSERT INTO kv_store (name, value, updated_at)
			VALUES ($1, '{}'::jsonb, NOW())
			ON CONFLICT (name) DO NOTHING
		`, name)
		if err != nil {
			return fmt.Errorf("failed to initialise kv_store entry: %w", err)
		}

		var current string
		err = tx.QueryRow(ctx, `SELECT value::text FROM kv_store WHERE name = $1 FOR UPDATE`, name).Scan(&current)
		if err != nil {
			return fmt.Errorf("failed to lock kv_store entry: %w", err)
		}

		next, err := fn([]byte(current))
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE kv_store SET value = $2::jsonb, updated_at = NOW() WHERE name = $1`, name, string(next))
		if err != nil {
			return fmt.Errorf("failed to update kv_store entry: %w", err)
		}
		return nil
	})
}

// Ping checks the database connection
func (s *PostgresAttemptStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
