package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"hangoutsync/internal/auth"
	"hangoutsync/internal/codec"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type AccountsStore interface {
	CreateAccount(ctx context.Context, a domain.Account) error
	AccountByEmail(ctx context.Context, email string) (domain.Account, error)
	AccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error)
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
	ProviderApple    = "apple"
)

type SignIn struct {
	UID       string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Created   bool      `json:"created"`
}

type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// AccountService signs users in and creates their users/{uid} profile on
// first sign-in.
type AccountService struct {
	Base
	Accounts AccountsStore
	Tokens   *auth.TokenIssuer
	Google   auth.IDTokenVerifier
	Apple    auth.IDTokenVerifier
}

func (s *AccountService) Register(ctx context.Context, r Registration) (SignIn, error) {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)

	fields := map[string]string{}
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" {
		fields["email"] = "must be a valid address"
	}
	if err := auth.CheckPasswordStrength(r.Password); err != nil {
		fields["password"] = err.Error()
	}
	if r.Username == "" {
		fields["username"] = "required"
	}
	if len(fields) > 0 {
		return SignIn{}, domain.NewValidationError(fields)
	}

	if _, err := s.Accounts.AccountByEmail(ctx, r.Email); err == nil {
		return SignIn{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return SignIn{}, err
	}

	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return SignIn{}, err
	}
	a := domain.Account{
		UID:          s.newID(),
		Email:        r.Email,
		PasswordHash: hash,
		Provider:     ProviderPassword,
		ProviderID:   r.Email,
		CreatedAt:    s.now(),
	}
	if err := s.Accounts.CreateAccount(ctx, a); err != nil {
		// Password accounts key the provider constraint on the email, so a
		// concurrent duplicate can trip either unique index.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return SignIn{}, domain.ErrEmailTaken
		}
		return SignIn{}, err
	}
	profile := domain.UserRecord{
		UID:      a.UID,
		Email:    domain.StringPtr(r.Email),
		Username: domain.StringPtr(r.Username),
		FullName: domain.StringPtr(r.FullName),
	}
	if err := s.writeProfile(ctx, profile); err != nil {
		return SignIn{}, err
	}
	return s.issue(a, true)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (SignIn, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	a, err := s.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SignIn{}, domain.ErrInvalidCredentials
		}
		return SignIn{}, err
	}
	if a.PasswordHash == "" {
		return SignIn{}, domain.ErrInvalidCredentials
	}
	ok, err := auth.VerifyPassword(a.PasswordHash, password)
	if err != nil {
		return SignIn{}, err
	}
	if !ok {
		return SignIn{}, domain.ErrInvalidCredentials
	}
	return s.issue(a, false)
}

func (s *AccountService) LoginWithGoogle(ctx context.Context, idToken string) (SignIn, error) {
	return s.loginExternal(ctx, s.Google, idToken)
}

func (s *AccountService) LoginWithApple(ctx context.Context, idToken string) (SignIn, error) {
	return s.loginExternal(ctx, s.Apple, idToken)
}

// loginExternal signs in with a provider token, creating the account on
// first use. An email already held by another account is not linked.
func (s *AccountService) loginExternal(ctx context.Context, verify auth.IDTokenVerifier, idToken string) (SignIn, error) {
	if verify == nil {
		return SignIn{}, fmt.Errorf("provider not configured: %w", domain.ErrCredentialExchangeFailed)
	}
	claims, err := verify(ctx, idToken)
	if err != nil {
		return SignIn{}, fmt.Errorf("%w: %v", domain.ErrCredentialExchangeFailed, err)
	}

	a, err := s.Accounts.AccountByProvider(ctx, claims.Provider, claims.Subject)
	if err == nil {
		return s.issue(a, false)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return SignIn{}, err
	}

	if claims.Email != "" {
		if _, err := s.Accounts.AccountByEmail(ctx, claims.Email); err == nil {
			return SignIn{}, domain.ErrEmailTaken
		} else if !errors.Is(err, domain.ErrNotFound) {
			return SignIn{}, err
		}
	}

	a = domain.Account{
		UID:        s.newID(),
		Email:      claims.Email,
		Provider:   claims.Provider,
		ProviderID: claims.Subject,
		CreatedAt:  s.now(),
	}
	if err := s.Accounts.CreateAccount(ctx, a); err != nil {
		return SignIn{}, err
	}
	if err := s.writeProfile(ctx, domain.UserRecord{UID: a.UID, Email: domain.StringPtr(claims.Email)}); err != nil {
		return SignIn{}, err
	}
	s.logger().Info("accounts: created", "uid", a.UID, "provider", a.Provider)
	return s.issue(a, true)
}

// Authenticate returns the uid behind a session token.
func (s *AccountService) Authenticate(token string) (string, error) {
	uid, err := s.Tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return uid, nil
}

func (s *AccountService) writeProfile(ctx context.Context, u domain.UserRecord) error {
	return s.Docs.Commit(ctx, []docstore.Write{
		docstore.Merge(remote.UsersCollection, u.UID, codec.EncodeUser(u)),
	})
}

func (s *AccountService) issue(a domain.Account, created bool) (SignIn, error) {
	token, expires, err := s.Tokens.Issue(a.UID, a.Provider)
	if err != nil {
		return SignIn{}, err
	}
	return SignIn{UID: a.UID, Token: token, ExpiresAt: expires, Created: created}, nil
}
