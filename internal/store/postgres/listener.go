package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hangoutsync/internal/remote"
)

type notifyPayload struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
}

func (p notifyPayload) kind() (remote.ChangeKind, error) {
	switch p.Op {
	case "INSERT":
		return remote.Added, nil
	case "UPDATE":
		return remote.Modified, nil
	case "DELETE":
		return remote.Removed, nil
	}
	return "", fmt.Errorf("unknown trigger op %q", p.Op)
}

// stableListen is how long a listener session must stay up before the
// reconnect backoff starts over from its initial interval.
const stableListen = time.Minute

// Listen relays document trigger notifications to the hub until ctx is
// cancelled. Every reconnect, whether the connect or a later wait failed,
// goes through one exponential backoff; changes committed while
// disconnected are not replayed.
func (s *DocumentStore) Listen(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	session := func(ctx context.Context) error { return s.listenOnce(ctx, logger) }
	return relay(ctx, logger, policy, session, sleepCtx)
}

func relay(ctx context.Context, logger *slog.Logger, policy backoff.BackOff, session func(context.Context) error, wait func(context.Context, time.Duration) bool) error {
	policy.Reset()
	for {
		started := time.Now()
		err := session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) >= stableListen {
			policy.Reset()
		}
		d := policy.NextBackOff()
		if d == backoff.Stop {
			return fmt.Errorf("postgres: change listener gave up: %w", err)
		}
		logger.Warn("postgres: change listener disconnected", "err", err, "retry_in", d)
		if !wait(ctx, d) {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *DocumentStore) listenOnce(ctx context.Context, logger *slog.Logger) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return err
	}
	// The listening connection is closed, never returned to the pool.
	pc := conn.Hijack()
	defer pc.Close(context.Background())
	logger.Info("postgres: change listener attached", "channel", NotifyChannel)

	for {
		n, err := pc.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			logger.Warn("postgres: bad change payload", "err", err, "payload", n.Payload)
			continue
		}
		change, err := s.resolve(ctx, p)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("postgres: resolve change failed", "err", err, "collection", p.Collection, "id", p.ID)
			continue
		}
		s.hub.Publish(p.Collection, []remote.Change{change})
	}
}

// resolve turns a trigger payload into a change carrying the document's
// current data. A row deleted since the notification is reported as removed.
func (s *DocumentStore) resolve(ctx context.Context, p notifyPayload) (remote.Change, error) {
	kind, err := p.kind()
	if err != nil {
		return remote.Change{}, err
	}
	if kind == remote.Removed {
		return remote.Change{Kind: remote.Removed, Doc: remote.Document{ID: p.ID}}, nil
	}
	data, err := getDocument(ctx, s.pool, p.Collection, p.ID, false)
	if err != nil {
		return remote.Change{}, err
	}
	if data == nil {
		return remote.Change{Kind: remote.Removed, Doc: remote.Document{ID: p.ID}}, nil
	}
	return remote.Change{Kind: kind, Doc: remote.Document{ID: p.ID, Data: data}}, nil
}
