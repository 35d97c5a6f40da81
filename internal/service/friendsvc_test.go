package service

import (
	"context"
	"errors"
	"testing"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/remote"
)

func newFriends(t *testing.T) (*FriendsService, *recordingNotifier) {
	t.Helper()
	docs := newTestStore(t)
	seedUser(t, docs, "alice", "alice")
	seedUser(t, docs, "bob", "bob")
	n := &recordingNotifier{}
	return &FriendsService{Base: testBase(docs), Notifier: n}, n
}

func sendReq(from, to string) functions.SendFriendRequestRequest {
	return functions.SendFriendRequestRequest{
		FromUID:        from,
		ToUID:          to,
		FromUsername:   from,
		FromAvatarURLs: []string{"https://img.example.com/" + from + ".png"},
	}
}

func TestFriendsSendRequestWritesBothSides(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newFriends(t)

	id, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if id != "id-1" {
		t.Fatalf("notification id = %q", id)
	}

	note := mustGet(t, svc.Docs, remote.NotificationsCollection("bob"), id)
	if note["kind"] != string(domain.KindFriendRequest) || note["status"] != string(domain.NotificationPending) || note["fromUid"] != "alice" {
		t.Fatalf("unexpected notification: %v", note)
	}
	pending := mustGet(t, svc.Docs, remote.PendingRequestsCollection("alice"), "bob")
	if pending["remoteNotificationId"] != id || pending["status"] != string(domain.RequestPending) {
		t.Fatalf("unexpected pending record: %v", pending)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].uid != "bob" || notifier.calls[0].push.NotificationID != id {
		t.Fatalf("unexpected pushes: %+v", notifier.calls)
	}

	if _, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate: err = %v", err)
	}
}

func TestFriendsSendRequestPreconditions(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newFriends(t)

	cases := []struct {
		name   string
		caller string
		req    functions.SendFriendRequestRequest
		want   error
	}{
		{"missing avatar", "alice", functions.SendFriendRequestRequest{FromUID: "alice", ToUID: "bob", FromUsername: "alice"}, domain.ErrPreconditionFailed},
		{"impersonation", "bob", sendReq("alice", "bob"), domain.ErrForbidden},
		{"signed out", "", sendReq("alice", "bob"), domain.ErrUnauthorized},
		{"self", "alice", sendReq("alice", "alice"), domain.ErrPreconditionFailed},
		{"unknown target", "alice", sendReq("alice", "carol"), domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SendRequest(ctx, tc.caller, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("no push expected, got %+v", notifier.calls)
	}
}

func TestFriendsUnsendRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFriends(t)

	id, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	err = svc.UnsendRequest(ctx, "alice", functions.UnsendFriendRequestRequest{ToUID: "bob", NotificationID: "other"})
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("mismatched id: err = %v", err)
	}
	if err := svc.UnsendRequest(ctx, "alice", functions.UnsendFriendRequestRequest{ToUID: "bob", NotificationID: id}); err != nil {
		t.Fatalf("UnsendRequest: %v", err)
	}
	if _, err := svc.Docs.Get(ctx, remote.PendingRequestsCollection("alice"), "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pending record should be gone: %v", err)
	}
	if _, err := svc.Docs.Get(ctx, remote.NotificationsCollection("bob"), id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("notification should be gone: %v", err)
	}
	err = svc.UnsendRequest(ctx, "alice", functions.UnsendFriendRequestRequest{ToUID: "bob", NotificationID: id})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second unsend: err = %v", err)
	}
}

func TestFriendsUnsendWithoutRecordedNotification(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFriends(t)

	// A pending record with no remoteNotificationId next to an unrelated
	// inbox entry on the target.
	if err := svc.Docs.Commit(ctx, []docstore.Write{
		docstore.Set(remote.PendingRequestsCollection("alice"), "bob", map[string]any{
			"targetUid": "bob", "status": string(domain.RequestPending), "requestedAt": testNow.UnixMilli(),
		}),
		docstore.Set(remote.NotificationsCollection("bob"), "unrelated", map[string]any{"fromUid": "carol"}),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := svc.UnsendRequest(ctx, "alice", functions.UnsendFriendRequestRequest{ToUID: "bob", NotificationID: "unrelated"})
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
	mustGet(t, svc.Docs, remote.NotificationsCollection("bob"), "unrelated")
	mustGet(t, svc.Docs, remote.PendingRequestsCollection("alice"), "bob")
}

func TestFriendsRespondAccepts(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newFriends(t)

	id, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	accept := functions.RespondToFriendRequestRequest{FromUID: "alice", ToUID: "bob"}
	if err := svc.Respond(ctx, "alice", accept); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("requester accepting own request: err = %v", err)
	}
	if err := svc.Respond(ctx, "bob", accept); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if got := mustGet(t, svc.Docs, remote.FriendsCollection("bob"), "alice"); got["friendUid"] != "alice" {
		t.Fatalf("bob's link: %v", got)
	}
	if got := mustGet(t, svc.Docs, remote.FriendsCollection("alice"), "bob"); got["friendUid"] != "bob" {
		t.Fatalf("alice's link: %v", got)
	}
	if got := mustGet(t, svc.Docs, remote.PendingRequestsCollection("alice"), "bob"); got["status"] != string(domain.RequestAccepted) {
		t.Fatalf("pending status: %v", got)
	}
	if got := mustGet(t, svc.Docs, remote.NotificationsCollection("bob"), id); got["status"] != string(domain.NotificationAccepted) {
		t.Fatalf("notification status: %v", got)
	}
	if last := notifier.calls[len(notifier.calls)-1]; last.uid != "alice" {
		t.Fatalf("acceptance push went to %s", last.uid)
	}

	if err := svc.Respond(ctx, "bob", accept); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("second accept: err = %v", err)
	}
	if _, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("request to a friend: err = %v", err)
	}
}

func TestFriendsRespondWithoutRequest(t *testing.T) {
	svc, _ := newFriends(t)
	err := svc.Respond(context.Background(), "bob", functions.RespondToFriendRequestRequest{FromUID: "alice", ToUID: "bob"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFriendsResendAfterRejection(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFriends(t)

	if _, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob")); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if err := svc.Docs.Commit(ctx, rejectWrites("alice", "bob")); err != nil {
		t.Fatalf("reject: %v", err)
	}
	id, err := svc.SendRequest(ctx, "alice", sendReq("alice", "bob"))
	if err != nil {
		t.Fatalf("resend after rejection: %v", err)
	}
	if got := mustGet(t, svc.Docs, remote.PendingRequestsCollection("alice"), "bob"); got["remoteNotificationId"] != id {
		t.Fatalf("pending record not replaced: %v", got)
	}
}
