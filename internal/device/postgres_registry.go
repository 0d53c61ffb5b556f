package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry is a PostgreSQL implementation of TokenRegistry backed by user_tokens.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a new PostgreSQL token registry.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Put upserts the user's token.
func (r *PostgresRegistry) Put(ctx context.Context, token *DeviceToken) error {
	query := `
		INSERT INTO user_tokens (user_id, fcm_token, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET fcm_token = EXCLUDED.fcm_token, updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query, token.UserID, token.Token, token.UpdatedAt)
	return err
}

// Get retrieves the user's token.
func (r *PostgresRegistry) Get(ctx context.Context, userID string) (*DeviceToken, error) {
	query := `
		SELECT user_id, fcm_token, updated_at
		FROM user_tokens
		WHERE user_id = $1
	`

	var token DeviceToken
	err := r.pool.QueryRow(ctx, query, userID).Scan(&token.UserID, &token.Token, &token.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &token, nil
}

// Delete removes the user's token.
func (r *PostgresRegistry) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, userID)
	return err
}
