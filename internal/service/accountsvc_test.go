package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hangoutsync/internal/auth"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

func stubVerifier(claims *auth.ExternalTokenClaims, err error) auth.IDTokenVerifier {
	return func(context.Context, string) (*auth.ExternalTokenClaims, error) {
		if err != nil {
			return nil, err
		}
		c := *claims
		return &c, nil
	}
}

func newAccountService(t *testing.T) *AccountService {
	t.Helper()
	docs := newTestStore(t)
	return &AccountService{
		Base:     testBase(docs),
		Accounts: docs,
		Tokens:   auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
	}
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t)

	in, err := svc.Register(ctx, Registration{Email: " Ana@Example.com ", Password: "correct horse", Username: "ana"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !in.Created || in.UID == "" || in.Token == "" {
		t.Fatalf("sign in = %+v", in)
	}
	profile := mustGet(t, svc.Docs, remote.UsersCollection, in.UID)
	if profile["username"] != "ana" || profile["email"] != "ana@example.com" {
		t.Fatalf("profile = %v", profile)
	}

	uid, err := svc.Authenticate(in.Token)
	if err != nil || uid != in.UID {
		t.Fatalf("Authenticate = %q, %v", uid, err)
	}

	again, err := svc.Login(ctx, "ANA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if again.UID != in.UID || again.Created {
		t.Fatalf("login = %+v", again)
	}

	if _, err := svc.Login(ctx, "ana@example.com", "wrong password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
	if _, err := svc.Register(ctx, Registration{Email: "ana@example.com", Password: "another pass", Username: "ana2"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAccountService(t)
	_, err := svc.Register(context.Background(), Registration{Email: "not-an-email", Password: "short"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"email", "password", "username"} {
		if _, ok := ve.Fields[f]; !ok {
			t.Fatalf("missing field %s in %v", f, ve.Fields)
		}
	}
}

func TestLoginWithGoogleCreatesOnce(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t)
	svc.Google = stubVerifier(&auth.ExternalTokenClaims{Provider: ProviderGoogle, Subject: "g-123", Email: "bo@example.com"}, nil)

	first, err := svc.LoginWithGoogle(ctx, "token")
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	if !first.Created {
		t.Fatalf("first sign in should create the account")
	}
	mustGet(t, svc.Docs, remote.UsersCollection, first.UID)

	second, err := svc.LoginWithGoogle(ctx, "token")
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}
	if second.Created || second.UID != first.UID {
		t.Fatalf("second = %+v, first = %+v", second, first)
	}
}

func TestLoginExternalEmailConflict(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t)
	if _, err := svc.Register(ctx, Registration{Email: "cy@example.com", Password: "long enough", Username: "cy"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	svc.Apple = stubVerifier(&auth.ExternalTokenClaims{Provider: ProviderApple, Subject: "a-1", Email: "cy@example.com"}, nil)

	if _, err := svc.LoginWithApple(ctx, "token"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoginExternalVerifierFailure(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(t)
	svc.Google = stubVerifier(nil, errors.New("token expired"))

	if _, err := svc.LoginWithGoogle(ctx, "token"); !errors.Is(err, domain.ErrCredentialExchangeFailed) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.LoginWithApple(ctx, "token"); !errors.Is(err, domain.ErrCredentialExchangeFailed) {
		t.Fatalf("unconfigured provider: err = %v", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc := newAccountService(t)
	if _, err := svc.Authenticate("not.a.token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

// racingAccounts misses the email lookup and then loses the insert, the way
// two concurrent registrations for one address interleave.
type racingAccounts struct{ AccountsStore }

func (racingAccounts) AccountByEmail(context.Context, string) (domain.Account, error) {
	return domain.Account{}, domain.ErrNotFound
}

func (racingAccounts) CreateAccount(context.Context, domain.Account) error {
	return domain.ErrAlreadyExists
}

func TestRegisterConcurrentDuplicateIsEmailTaken(t *testing.T) {
	svc := newAccountService(t)
	svc.Accounts = racingAccounts{}
	_, err := svc.Register(context.Background(), Registration{Email: "ana@example.com", Password: "correct horse", Username: "ana"})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("Register = %v, want ErrEmailTaken", err)
	}
}
