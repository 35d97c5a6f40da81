package sqlite

import (
	"context"
	"fmt"
	"time"

	"hangoutsync/internal/domain"
)

func (s *Store) UpsertToken(ctx context.Context, uid, token, platform string, when time.Time) (domain.NotificationToken, error) {
	const q = `
		INSERT INTO notification_tokens (token, uid, platform, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (token)
		DO UPDATE SET
			uid = excluded.uid,
			platform = excluded.platform,
			updated_at = excluded.updated_at
		RETURNING uid, token, platform, created_at, updated_at
	`
	var (
		t                domain.NotificationToken
		created, updated int64
	)
	ms := when.UnixMilli()
	err := s.db.QueryRowContext(ctx, q, token, uid, platform, ms, ms).Scan(&t.UID, &t.Token, &t.Platform, &created, &updated)
	if err != nil {
		return domain.NotificationToken{}, fmt.Errorf("upsert notification token: %w", err)
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.UpdatedAt = time.UnixMilli(updated).UTC()
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, uid, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notification_tokens WHERE uid = ? AND token = ?`, uid, token); err != nil {
		return fmt.Errorf("delete notification token: %w", err)
	}
	return nil
}

func (s *Store) ListTokens(ctx context.Context, uid string) ([]domain.NotificationToken, error) {
	const q = `
		SELECT uid, token, platform, created_at, updated_at
		FROM notification_tokens
		WHERE uid = ?
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, uid)
	if err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationToken
	for rows.Next() {
		var (
			t                domain.NotificationToken
			created, updated int64
		)
		if err := rows.Scan(&t.UID, &t.Token, &t.Platform, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan notification token: %w", err)
		}
		t.CreatedAt = time.UnixMilli(created).UTC()
		t.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	return out, nil
}
