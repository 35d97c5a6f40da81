package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hangoutsync/internal/codec"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/remote"
)

func hangoutReq(owner string, participants ...string) functions.CreateHangoutRequest {
	return functions.CreateHangoutRequest{
		CreationDate:    testNow.UnixMilli(),
		Duration:        domain.DurationHalfDay,
		Vibe:            domain.Vibes()[0],
		ParticipantUIDs: participants,
		Location:        &domain.Location{Name: "Dolores Park"},
		Title:           domain.StringPtr("Picnic"),
		Tags:            []string{"outdoor", "food", "outdoor"},
		Budget:          20,
		IsOutdoor:       true,
		OwnerUID:        owner,
	}
}

func TestHangoutCreateFansOut(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)
	seedUser(t, docs, "alice", "alice")
	seedUser(t, docs, "bob", "bob")
	seedUser(t, docs, "carol", "carol")
	notifier := &recordingNotifier{}
	svc := &HangoutService{Base: testBase(docs), Notifier: notifier}

	id, err := svc.Create(ctx, "alice", hangoutReq("alice", "bob", "carol", "bob"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := docs.Get(ctx, remote.HangoutsCollection, id)
	if err != nil {
		t.Fatalf("get hangout: %v", err)
	}
	h, err := codec.DecodeHangout(doc.ID, doc.Data)
	if err != nil {
		t.Fatalf("decode hangout: %v", err)
	}
	if got := strings.Join(h.ParticipantUIDs, ","); got != "alice,bob,carol" {
		t.Fatalf("participants = %s", got)
	}
	if h.Status != domain.HangoutPending || len(h.Tags) != 2 || !h.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected hangout: %+v", h)
	}

	for _, uid := range []string{"alice", "bob", "carol"} {
		ref := mustGet(t, docs, remote.UserHangoutsCollection(uid), id)
		if ref["storagePath"] != domain.HangoutPath(id) || ref["title"] != "Picnic" {
			t.Fatalf("%s ref: %v", uid, ref)
		}
	}

	aliceInbox, err := docs.Query(ctx, remote.Query{Collection: remote.NotificationsCollection("alice")})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(aliceInbox) != 0 {
		t.Fatalf("owner should not be invited: %v", aliceInbox)
	}
	bobInbox, err := docs.Query(ctx, remote.Query{Collection: remote.NotificationsCollection("bob")})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bobInbox) != 1 || bobInbox[0].Data["kind"] != string(domain.KindHangoutRequest) {
		t.Fatalf("bob inbox: %v", bobInbox)
	}
	if len(notifier.calls) != 2 {
		t.Fatalf("pushes = %+v", notifier.calls)
	}
}

func TestHangoutCreateOwnerAddedWhenMissing(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)
	seedUser(t, docs, "alice", "alice")
	svc := &HangoutService{Base: testBase(docs)}

	id, err := svc.Create(ctx, "alice", hangoutReq("alice", "alice"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mustGet(t, docs, remote.UserHangoutsCollection("alice"), id)
}

func TestHangoutCreateRejects(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)
	seedUser(t, docs, "alice", "alice")
	svc := &HangoutService{Base: testBase(docs)}

	negative := hangoutReq("alice", "alice")
	negative.Budget = -1

	cases := []struct {
		name   string
		caller string
		req    functions.CreateHangoutRequest
		want   error
	}{
		{"negative budget", "alice", negative, domain.ErrPreconditionFailed},
		{"not the owner", "bob", hangoutReq("alice", "alice"), domain.ErrForbidden},
		{"unknown participant", "alice", hangoutReq("alice", "ghost"), domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.caller, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	refs, err := docs.Query(ctx, remote.Query{Collection: remote.HangoutsCollection})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("nothing should be written: %v", refs)
	}
}
