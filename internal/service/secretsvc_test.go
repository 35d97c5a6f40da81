package service

import (
	"context"
	"errors"
	"testing"

	"hangoutsync/internal/domain"
)

func TestSecretServiceCachesKey(t *testing.T) {
	calls := 0
	svc := &SecretService{Source: func(context.Context) (string, error) {
		calls++
		return "search-key", nil
	}}
	for i := 0; i < 3; i++ {
		key, err := svc.SearchAPIKey(context.Background(), "alice")
		if err != nil || key != "search-key" {
			t.Fatalf("SearchAPIKey = %q, %v", key, err)
		}
	}
	if calls != 1 {
		t.Fatalf("source called %d times", calls)
	}
}

func TestSecretServiceRetriesAfterFailure(t *testing.T) {
	fail := true
	svc := &SecretService{Source: func(context.Context) (string, error) {
		if fail {
			return "", errors.New("permission denied")
		}
		return "k", nil
	}}
	if _, err := svc.SearchAPIKey(context.Background(), "alice"); !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("err = %v", err)
	}
	fail = false
	if key, err := svc.SearchAPIKey(context.Background(), "alice"); err != nil || key != "k" {
		t.Fatalf("second call = %q, %v", key, err)
	}
}

func TestSecretServiceRequiresCaller(t *testing.T) {
	svc := &SecretService{Source: StaticSecret("k")}
	if _, err := svc.SearchAPIKey(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	empty := &SecretService{Source: StaticSecret("")}
	if _, err := empty.SearchAPIKey(context.Background(), "alice"); !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("empty secret: err = %v", err)
	}
}
