package client

import (
	"context"
	"fmt"
	"log/slog"

	"hangoutsync/internal/cache"
	"hangoutsync/internal/codec"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/reconcile"
	"hangoutsync/internal/remote"
)

const (
	DefaultPageSize = 25
	MinPageSize     = 10
	MaxPageSize     = 25
)

// ClampPageSize keeps n within [MinPageSize, MaxPageSize]; zero or less
// means DefaultPageSize.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n < MinPageSize:
		return MinPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

// Inbox tracks the newest page of the signed-in user's notifications.
type Inbox struct {
	deps   Deps
	uid    string
	logger *slog.Logger
	rec    *reconcile.Reconciler[domain.Notification]
}

func NewInbox(deps Deps, pageSize int) (*Inbox, error) {
	uid, err := deps.Identity.Require()
	if err != nil {
		return nil, err
	}
	logger := deps.logger().With("model", "inbox")
	q := remote.Query{
		Collection: remote.NotificationsCollection(uid),
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      ClampPageSize(pageSize),
	}
	return &Inbox{
		deps:   deps,
		uid:    uid,
		logger: logger,
		rec: reconcile.New(deps.Source, q, codec.DecodeNotification, cache.NewStore(NotificationSchema()),
			reconcile.Options{Name: "notifications", ClearOnDetach: deps.ClearOnDetach, Logger: logger, OnError: deps.OnError}),
	}, nil
}

func (in *Inbox) Store() *cache.Store[domain.Notification] { return in.rec.Store() }

func (in *Inbox) Query() remote.Query { return in.rec.Query() }

func (in *Inbox) Load(ctx context.Context) error {
	if err := in.rec.Refresh(ctx); err != nil {
		return err
	}
	return in.rec.Attach(subscriptionContext(ctx))
}

func (in *Inbox) Detach() { in.rec.Detach() }

// All returns notifications newest first.
func (in *Inbox) All() []domain.Notification { return in.rec.Store().SortedByCreation() }

// Unread returns notifications still waiting on the user, newest first.
func (in *Inbox) Unread() []domain.Notification {
	out := []domain.Notification{}
	for _, n := range in.All() {
		if n.Unseen() {
			out = append(out, n)
		}
	}
	return out
}

func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	return in.setStatus(ctx, id, domain.NotificationRead)
}

func (in *Inbox) Accept(ctx context.Context, id string) error {
	return in.setStatus(ctx, id, domain.NotificationAccepted)
}

func (in *Inbox) Reject(ctx context.Context, id string) error {
	return in.setStatus(ctx, id, domain.NotificationRejected)
}

func (in *Inbox) setStatus(ctx context.Context, id string, status domain.NotificationStatus) error {
	if _, err := in.deps.Identity.Require(); err != nil {
		return err
	}
	n, ok := in.rec.Store().Get(id)
	if !ok {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	if err := in.deps.Gateway.UpdateNotificationStatus(ctx, functions.UpdateNotificationStatusRequest{
		ToUID:          in.uid,
		NotificationID: id,
		Status:         string(status),
	}); err != nil {
		in.logger.Error("inbox: update status failed", "id", id, "status", string(status), "err", err)
		return err
	}
	n.Status = status
	in.rec.ApplyRecord(n)
	return nil
}
