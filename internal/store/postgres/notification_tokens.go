package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hangoutsync/internal/domain"
)

type NotificationTokensStore struct {
	pool *pgxpool.Pool
}

func NewNotificationTokensStore(pool *pgxpool.Pool) *NotificationTokensStore {
	return &NotificationTokensStore{pool: pool}
}

// UpsertToken registers token for uid. A token moves to the latest uid that
// registers it.
func (s *NotificationTokensStore) UpsertToken(ctx context.Context, uid, token, platform string, when time.Time) (domain.NotificationToken, error) {
	const q = `
		INSERT INTO notification_tokens (token, uid, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token)
		DO UPDATE SET
			uid = EXCLUDED.uid,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING uid, token, platform, created_at, updated_at
	`
	var t domain.NotificationToken
	err := s.pool.QueryRow(ctx, q, token, uid, platform, when).Scan(&t.UID, &t.Token, &t.Platform, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.NotificationToken{}, fmt.Errorf("upsert notification token: %w", err)
	}
	return t, nil
}

func (s *NotificationTokensStore) DeleteToken(ctx context.Context, uid, token string) error {
	const q = `
		DELETE FROM notification_tokens
		WHERE uid = $1 AND token = $2
	`
	if _, err := s.pool.Exec(ctx, q, uid, token); err != nil {
		return fmt.Errorf("delete notification token: %w", err)
	}
	return nil
}

func (s *NotificationTokensStore) ListTokens(ctx context.Context, uid string) ([]domain.NotificationToken, error) {
	const q = `
		SELECT uid, token, platform, created_at, updated_at
		FROM notification_tokens
		WHERE uid = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationToken
	for rows.Next() {
		var t domain.NotificationToken
		if err := rows.Scan(&t.UID, &t.Token, &t.Platform, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	return out, nil
}
