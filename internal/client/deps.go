package client

import (
	"context"
	"log/slog"
	"time"

	"hangoutsync/internal/functions"
	"hangoutsync/internal/remote"
)

// Gateway is the slice of the callable client the models use.
type Gateway interface {
	SendFriendRequest(ctx context.Context, req functions.SendFriendRequestRequest) (string, error)
	UnsendFriendRequest(ctx context.Context, req functions.UnsendFriendRequestRequest) error
	RespondToFriendRequest(ctx context.Context, req functions.RespondToFriendRequestRequest) error
	UpdateNotificationStatus(ctx context.Context, req functions.UpdateNotificationStatusRequest) error
	CreateHangout(ctx context.Context, req functions.CreateHangoutRequest) (string, error)
	SearchServiceAPIKey(ctx context.Context) (string, error)
}

type Deps struct {
	Identity *Identity
	Source   remote.Source
	Writer   remote.Writer
	Gateway  Gateway
	Logger   *slog.Logger

	// ClearOnDetach is passed to every reconciler the models own.
	ClearOnDetach bool
	// OnError receives subscription failures from every model.
	OnError func(error)
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// subscriptionContext strips the deadline and cancellation from a Load
// context. Live listeners end on Detach, not when a one-shot fetch times out.
func subscriptionContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
