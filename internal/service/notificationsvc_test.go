package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/notifications"
	"hangoutsync/internal/remote"
)

type stubNotificationTokensStore struct {
	upsertFunc func(context.Context, string, string, string, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
	listFunc   func(context.Context, string) ([]domain.NotificationToken, error)
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, uid, token, platform string, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, uid, token, platform, when)
	}
	return domain.NotificationToken{}, errors.New("upsert not stubbed")
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, uid, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, uid, token)
	}
	return errors.New("delete not stubbed")
}

func (s *stubNotificationTokensStore) ListTokens(ctx context.Context, uid string) ([]domain.NotificationToken, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, uid)
	}
	return nil, errors.New("list not stubbed")
}

type stubPushSender struct {
	sendFunc func(context.Context, string, notifications.Message) error
}

func (s *stubPushSender) Send(ctx context.Context, token string, msg notifications.Message) error {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, token, msg)
	}
	return nil
}

func TestNotificationServiceRegisterTokenValidation(t *testing.T) {
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{},
	}

	if _, err := svc.RegisterToken(context.Background(), "user-1", "", "android"); err == nil {
		t.Fatalf("expected validation error for empty token")
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", "token", ""); err == nil {
		t.Fatalf("expected validation error for empty platform")
	}
	if _, err := svc.RegisterToken(context.Background(), "user-1", "token", "web"); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected validation error for unknown platform, got %v", err)
	}
}

func TestNotificationServiceRegisterTokenNormalizes(t *testing.T) {
	var gotPlatform string
	svc := &NotificationService{
		Base: Base{Now: func() time.Time { return testNow }},
		Tokens: &stubNotificationTokensStore{
			upsertFunc: func(_ context.Context, uid, token, platform string, when time.Time) (domain.NotificationToken, error) {
				gotPlatform = platform
				return domain.NotificationToken{UID: uid, Token: token, Platform: platform, CreatedAt: when, UpdatedAt: when}, nil
			},
		},
	}
	tok, err := svc.RegisterToken(context.Background(), "user-1", " tok ", " iOS ")
	if err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}
	if gotPlatform != "ios" || tok.Token != "tok" {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestNotificationServiceNotifyDeletesInvalidToken(t *testing.T) {
	deleted := false
	tokens := &stubNotificationTokensStore{
		listFunc: func(_ context.Context, uid string) ([]domain.NotificationToken, error) {
			if uid != "user-2" {
				t.Fatalf("unexpected uid: %s", uid)
			}
			return []domain.NotificationToken{{Token: "token-1", Platform: "android"}}, nil
		},
		deleteFunc: func(_ context.Context, uid, token string) error {
			if uid != "user-2" || token != "token-1" {
				t.Fatalf("unexpected delete args: %s %s", uid, token)
			}
			deleted = true
			return nil
		},
	}
	sender := &stubPushSender{
		sendFunc: func(_ context.Context, token string, msg notifications.Message) error {
			if token != "token-1" {
				t.Fatalf("unexpected token: %s", token)
			}
			if msg.Notification != nil {
				t.Fatalf("android should get a data-only message")
			}
			return notifications.ErrInvalidToken
		},
	}

	svc := &NotificationService{Tokens: tokens, Sender: sender}
	svc.Notify(context.Background(), "user-2", friendRequestPush("n-1", "user-1", "alice"))
	if !deleted {
		t.Fatalf("expected invalid token to be deleted")
	}
}

func TestNotificationServiceNotifySendsAlertToIOS(t *testing.T) {
	var got notifications.Message
	svc := &NotificationService{
		Tokens: &stubNotificationTokensStore{
			listFunc: func(context.Context, string) ([]domain.NotificationToken, error) {
				return []domain.NotificationToken{{Token: "t", Platform: "ios"}}, nil
			},
		},
		Sender: &stubPushSender{sendFunc: func(_ context.Context, _ string, msg notifications.Message) error {
			got = msg
			return nil
		}},
	}
	svc.Notify(context.Background(), "user-2", friendRequestPush("n-1", "user-1", "alice"))
	if got.Notification == nil || got.Notification.Body != "alice sent you a friend request." {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Data["type"] != string(domain.KindFriendRequest) || got.Data["notification_id"] != "n-1" {
		t.Fatalf("unexpected data: %v", got.Data)
	}
}

func TestNotificationServiceNotifyNilSafe(t *testing.T) {
	var svc *NotificationService
	svc.Notify(context.Background(), "u", Push{})
	(&NotificationService{}).Notify(context.Background(), "u", Push{})
}

func TestNotificationServiceUpdateStatus(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)
	seedUser(t, docs, "alice", "alice")
	seedUser(t, docs, "bob", "bob")
	friends := &FriendsService{Base: testBase(docs)}
	id, err := friends.SendRequest(ctx, "alice", sendReq("alice", "bob"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	svc := &NotificationService{Base: testBase(docs)}
	read := functions.UpdateNotificationStatusRequest{ToUID: "bob", NotificationID: id, Status: "read"}

	if err := svc.UpdateStatus(ctx, "alice", read); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other user's inbox: err = %v", err)
	}
	bad := read
	bad.Status = "archived"
	if err := svc.UpdateStatus(ctx, "bob", bad); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("bad status: err = %v", err)
	}
	missing := read
	missing.NotificationID = "nope"
	if err := svc.UpdateStatus(ctx, "bob", missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing notification: err = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "bob", read); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got := mustGet(t, docs, remote.NotificationsCollection("bob"), id)
	if got["status"] != "read" || got["fromUid"] != "alice" {
		t.Fatalf("notification after update: %v", got)
	}
}
