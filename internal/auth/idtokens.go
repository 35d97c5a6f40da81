package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

type ExternalTokenClaims struct {
	Provider string
	Issuer   string
	Subject  string
	Email    string
}

// IDTokenVerifier checks a third-party identity token and returns its claims.
type IDTokenVerifier func(ctx context.Context, token string) (*ExternalTokenClaims, error)

var ErrNoAudience = errors.New("no client ids configured")

// GoogleVerifier accepts tokens minted for any of the given client ids
// (web, iOS and Android clients each have their own).
func GoogleVerifier(audiences []string) IDTokenVerifier {
	return func(ctx context.Context, token string) (*ExternalTokenClaims, error) {
		if strings.TrimSpace(token) == "" {
			return nil, errors.New("missing id token")
		}
		if len(audiences) == 0 {
			return nil, fmt.Errorf("google: %w", ErrNoAudience)
		}
		var lastErr error
		for _, aud := range audiences {
			payload, err := idtoken.Validate(ctx, token, aud)
			if err != nil {
				lastErr = err
				continue
			}
			if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
				return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
			}
			email, _ := payload.Claims["email"].(string)
			return &ExternalTokenClaims{
				Provider: "google",
				Issuer:   payload.Issuer,
				Subject:  payload.Subject,
				Email:    strings.TrimSpace(strings.ToLower(email)),
			}, nil
		}
		return nil, lastErr
	}
}

func AppleVerifier(audiences []string) IDTokenVerifier {
	client := validator.NewClient()
	return func(ctx context.Context, token string) (*ExternalTokenClaims, error) {
		if strings.TrimSpace(token) == "" {
			return nil, errors.New("missing id token")
		}
		if len(audiences) == 0 {
			return nil, fmt.Errorf("apple: %w", ErrNoAudience)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var lastErr error
		for _, aud := range audiences {
			idToken, err := client.VerifyIdToken(aud, token)
			if err != nil {
				lastErr = err
				continue
			}
			if idToken.Iss != "https://appleid.apple.com" {
				return nil, fmt.Errorf("unexpected issuer: %s", idToken.Iss)
			}
			return &ExternalTokenClaims{
				Provider: "apple",
				Issuer:   idToken.Iss,
				Subject:  idToken.Sub,
				Email:    strings.TrimSpace(strings.ToLower(idToken.Email)),
			}, nil
		}
		return nil, lastErr
	}
}
