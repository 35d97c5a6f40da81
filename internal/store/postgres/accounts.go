package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"hangoutsync/internal/domain"
)

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, a domain.Account) error {
	const q = `
		INSERT INTO accounts (uid, email, password_hash, provider, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, q, a.UID, nullIfEmpty(strings.ToLower(a.Email)), nullIfEmpty(a.PasswordHash), a.Provider, a.ProviderID, a.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, "accounts_email_uq"):
		return domain.ErrEmailTaken
	case isUniqueViolation(err, ""):
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("create account: %w", err)
}

func (s *AccountsStore) AccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.one(ctx, `WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *AccountsStore) AccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	return s.one(ctx, `WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

func (s *AccountsStore) one(ctx context.Context, where string, args ...any) (domain.Account, error) {
	q := `SELECT uid, email, password_hash, provider, provider_id, created_at FROM accounts ` + where
	var (
		a     domain.Account
		email pgtype.Text
		hash  pgtype.Text
	)
	err := s.pool.QueryRow(ctx, q, args...).Scan(&a.UID, &email, &hash, &a.Provider, &a.ProviderID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Email = textOrEmpty(email)
	a.PasswordHash = textOrEmpty(hash)
	return a, nil
}
