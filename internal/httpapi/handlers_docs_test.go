package httpapi

import (
	"errors"
	"testing"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

func TestCanQuery(t *testing.T) {
	cases := []struct {
		collection string
		want       error
	}{
		{remote.UsersCollection, nil},
		{remote.FriendsCollection("u1"), nil},
		{remote.NotificationsCollection("u1"), nil},
		{remote.NotificationsCollection("u2"), domain.ErrForbidden},
		{remote.HangoutsCollection, domain.ErrForbidden},
	}
	for _, tc := range cases {
		if err := canQuery("u1", tc.collection); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.collection, err, tc.want)
		}
	}
}

func TestCanReadHangout(t *testing.T) {
	doc := remote.Document{ID: "h1", Data: map[string]any{"participantUids": []any{"u1", "u2"}}}
	if err := canRead("u2", remote.HangoutsCollection, doc); err != nil {
		t.Fatalf("participant: %v", err)
	}
	if err := canRead("u3", remote.HangoutsCollection, doc); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("outsider: %v", err)
	}
}

func TestCanPatch(t *testing.T) {
	rejected := map[string]any{"status": string(domain.RequestRejected)}
	cases := []struct {
		name       string
		collection string
		id         string
		fields     map[string]any
		want       error
	}{
		{"reject addressed to me", remote.PendingRequestsCollection("u2"), "u1", rejected, nil},
		{"reject addressed to someone else", remote.PendingRequestsCollection("u2"), "u3", rejected, domain.ErrForbidden},
		{"accept directly", remote.PendingRequestsCollection("u2"), "u1", map[string]any{"status": "accepted"}, domain.ErrPreconditionFailed},
		{"own profile", remote.UsersCollection, "u1", map[string]any{"fullName": "Ana B", "photoURL": nil}, nil},
		{"profile email", remote.UsersCollection, "u1", map[string]any{"email": "x@example.com"}, domain.ErrPreconditionFailed},
		{"profile non string", remote.UsersCollection, "u1", map[string]any{"username": 7}, domain.ErrPreconditionFailed},
		{"other profile", remote.UsersCollection, "u2", map[string]any{"fullName": "x"}, domain.ErrForbidden},
		{"own friends", remote.FriendsCollection("u1"), "u2", map[string]any{"x": "y"}, domain.ErrForbidden},
		{"empty", remote.UsersCollection, "u1", nil, domain.ErrPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := canPatch("u1", tc.collection, tc.id, tc.fields); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
