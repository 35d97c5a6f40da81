package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"hangoutsync/internal/remote"
)

func TestNotifyPayloadKind(t *testing.T) {
	cases := map[string]remote.ChangeKind{
		"INSERT": remote.Added,
		"UPDATE": remote.Modified,
		"DELETE": remote.Removed,
	}
	for op, want := range cases {
		got, err := notifyPayload{Op: op}.kind()
		if err != nil || got != want {
			t.Fatalf("%s: got %q, %v", op, got, err)
		}
	}
	if _, err := (notifyPayload{Op: "TRUNCATE"}).kind(); err == nil {
		t.Fatalf("expected error for TRUNCATE")
	}
}

func TestResolveDeleteNeedsNoRead(t *testing.T) {
	s := &DocumentStore{}
	c, err := s.resolve(context.Background(), notifyPayload{Collection: "users/u1/friends", ID: "u2", Op: "DELETE"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Kind != remote.Removed || c.Doc.ID != "u2" || c.Doc.Data != nil {
		t.Fatalf("unexpected change: %+v", c)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_uq"}
	if !isUniqueViolation(err, "accounts_email_uq") || !isUniqueViolation(err, "") {
		t.Fatalf("expected unique violation")
	}
	if isUniqueViolation(err, "accounts_provider_uq") {
		t.Fatalf("constraint name should be matched")
	}
	if isUniqueViolation(errors.New("x"), "") {
		t.Fatalf("plain error is not a violation")
	}
}

func TestDecodeData(t *testing.T) {
	data, err := decodeData([]byte(`{"a":1}`))
	if err != nil || data["a"] != float64(1) {
		t.Fatalf("decodeData: %v %v", data, err)
	}
	data, err = decodeData([]byte(`null`))
	if err != nil || data == nil {
		t.Fatalf("null should decode to empty map: %v %v", data, err)
	}
	if _, err := decodeData([]byte(`[`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRelayBacksOffWhenSessionsFailImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 0

	sessions := 0
	session := func(context.Context) error {
		sessions++
		return errors.New("conn reset right after LISTEN")
	}
	var waits []time.Duration
	wait := func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		if len(waits) == 4 {
			cancel()
			return false
		}
		return true
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := relay(ctx, logger, policy, session, wait); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if sessions != 4 {
		t.Fatalf("sessions = %d, want 4", sessions)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
	for i, d := range want {
		if waits[i] != d {
			t.Fatalf("waits = %v, want %v", waits, want)
		}
	}
}

func TestRelayStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := func(context.Context) error {
		cancel()
		return context.Canceled
	}
	wait := func(context.Context, time.Duration) bool {
		t.Fatalf("no reconnect expected after cancel")
		return false
	}
	if err := relay(ctx, slog.Default(), backoff.NewExponentialBackOff(), session, wait); err != nil {
		t.Fatalf("relay: %v", err)
	}
}
