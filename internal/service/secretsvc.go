package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "google.golang.org/api/secretmanager/v1"

	"hangoutsync/internal/domain"
)

// SecretSource fetches the current value of one secret.
type SecretSource func(ctx context.Context) (string, error)

// SecretManagerSource reads a version of a Secret Manager secret, such as
// projects/p/secrets/search-key/versions/latest.
func SecretManagerSource(svc *secretmanager.Service, name string) SecretSource {
	return func(ctx context.Context) (string, error) {
		resp, err := svc.Projects.Secrets.Versions.Access(name).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("access secret %s: %w", name, err)
		}
		if resp.Payload == nil {
			return "", fmt.Errorf("access secret %s: empty payload", name)
		}
		raw, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
		if err != nil {
			return "", fmt.Errorf("decode secret %s: %w", name, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
}

// StaticSecret serves a fixed value, for development.
func StaticSecret(value string) SecretSource {
	return func(context.Context) (string, error) { return value, nil }
}

var ErrSecretUnavailable = errors.New("secret unavailable")

// SecretService hands the search service API key to signed-in clients. The
// key is fetched once and cached; a failed fetch is retried on the next call.
type SecretService struct {
	Source SecretSource

	mu     sync.Mutex
	cached string
}

func (s *SecretService) SearchAPIKey(ctx context.Context, caller string) (string, error) {
	if caller == "" {
		return "", domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" {
		return s.cached, nil
	}
	if s.Source == nil {
		return "", ErrSecretUnavailable
	}
	v, err := s.Source(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	if v == "" {
		return "", ErrSecretUnavailable
	}
	s.cached = v
	return v, nil
}
