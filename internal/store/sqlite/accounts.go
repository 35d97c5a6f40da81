package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hangoutsync/internal/domain"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	const q = `
		INSERT INTO accounts (uid, email, password_hash, provider, provider_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, a.UID, nullIfEmpty(strings.ToLower(a.Email)), nullIfEmpty(a.PasswordHash), a.Provider, a.ProviderID, a.CreatedAt.UnixMilli())
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, "accounts.email"):
		return domain.ErrEmailTaken
	case isUniqueViolation(err, "accounts."):
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("create account: %w", err)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.account(ctx, `WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) AccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	return s.account(ctx, `WHERE provider = ? AND provider_id = ?`, provider, providerID)
}

func (s *Store) account(ctx context.Context, where string, args ...any) (domain.Account, error) {
	q := `SELECT uid, email, password_hash, provider, provider_id, created_at FROM accounts ` + where
	var (
		a       domain.Account
		email   sql.NullString
		hash    sql.NullString
		created int64
	)
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&a.UID, &email, &hash, &a.Provider, &a.ProviderID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Email = email.String
	a.PasswordHash = hash.String
	a.CreatedAt = time.UnixMilli(created).UTC()
	return a, nil
}
