package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/notifications"
	"hangoutsync/internal/remote"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, uid, token, platform string, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, uid, token string) error
	ListTokens(ctx context.Context, uid string) ([]domain.NotificationToken, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

// Push is a device notification about an inbox entry.
type Push struct {
	Kind           domain.NotificationKind
	NotificationID string
	FromUID        string
	Title          string
	Body           string
}

type NotificationService struct {
	Base
	Tokens NotificationTokensStore
	Sender PushSender
}

func (s *NotificationService) RegisterToken(ctx context.Context, uid, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))
	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	switch platform {
	case "android", "ios":
	case "":
		fields["platform"] = "required"
	default:
		fields["platform"] = "must be ios or android"
	}
	if len(fields) > 0 {
		return domain.NotificationToken{}, domain.NewValidationError(fields)
	}
	when := s.now().Truncate(time.Millisecond)
	return s.Tokens.UpsertToken(ctx, uid, token, platform, when)
}

func (s *NotificationService) DeleteToken(ctx context.Context, uid, token string) error {
	if s.Tokens == nil {
		return errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, uid, token)
}

// UpdateStatus sets the status of one of the caller's own notifications.
func (s *NotificationService) UpdateStatus(ctx context.Context, caller string, req functions.UpdateNotificationStatusRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := requireCaller(caller, req.ToUID, "toUid"); err != nil {
		return err
	}
	return s.Docs.Commit(ctx, []docstore.Write{
		docstore.Update(remote.NotificationsCollection(req.ToUID), req.NotificationID, map[string]any{"status": req.Status}),
	})
}

// Notify sends p to every device uid registered. Tokens the push service
// reports as unregistered are deleted. Delivery failures are logged, not
// returned: the inbox document is the source of truth.
func (s *NotificationService) Notify(ctx context.Context, uid string, p Push) {
	if s == nil || s.Tokens == nil || s.Sender == nil {
		return
	}
	logger := s.logger()

	tokens, err := s.Tokens.ListTokens(ctx, uid)
	if err != nil {
		logger.Error("notifications: list tokens failed", "err", err, "uid", uid)
		return
	}
	if len(tokens) == 0 {
		return
	}

	payload := map[string]string{
		"type":            string(p.Kind),
		"notification_id": p.NotificationID,
		"from_uid":        p.FromUID,
		"body":            p.Body,
	}
	dataOnlyMsg := notifications.Message{Data: payload}
	iosAlertMsg := notifications.Message{
		Data:         payload,
		Notification: &notifications.Notification{Title: p.Title, Body: p.Body},
	}

	for _, token := range tokens {
		msg := dataOnlyMsg
		if strings.TrimSpace(strings.ToLower(token.Platform)) == "ios" {
			msg = iosAlertMsg
		}
		if err := s.Sender.Send(ctx, token.Token, msg); err != nil {
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Tokens.DeleteToken(ctx, uid, token.Token); delErr != nil {
					logger.Error("notifications: delete invalid token failed", "err", delErr, "uid", uid)
				}
				continue
			}
			logger.Error("notifications: send failed", "err", err, "uid", uid)
		}
	}
}

func friendRequestPush(notificationID, fromUID, username string) Push {
	body := "You received a friend request."
	if username != "" {
		body = fmt.Sprintf("%s sent you a friend request.", username)
	}
	return Push{Kind: domain.KindFriendRequest, NotificationID: notificationID, FromUID: fromUID, Title: "Friend request", Body: body}
}
