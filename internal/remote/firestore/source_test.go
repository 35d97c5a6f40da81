package firestore

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hangoutsync/internal/remote"
)

func TestChangeKind(t *testing.T) {
	cases := []struct {
		in   firestore.DocumentChangeKind
		want remote.ChangeKind
	}{
		{firestore.DocumentAdded, remote.Added},
		{firestore.DocumentModified, remote.Modified},
		{firestore.DocumentRemoved, remote.Removed},
	}
	for _, tc := range cases {
		got, ok := changeKind(tc.in)
		if !ok || got != tc.want {
			t.Fatalf("changeKind(%v) = %q, %v; want %q", tc.in, got, ok, tc.want)
		}
	}
	if _, ok := changeKind(firestore.DocumentChangeKind(99)); ok {
		t.Fatalf("unknown kind should be rejected")
	}
}

func TestCleanStop(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"iterator done", live, iterator.Done, true},
		{"grpc canceled", live, status.Error(codes.Canceled, "listen cancelled"), true},
		{"context canceled", live, context.Canceled, true},
		{"detached caller", cancelled, errors.New("transport closing"), true},
		{"unavailable", live, status.Error(codes.Unavailable, "backend down"), false},
		{"permission denied", live, status.Error(codes.PermissionDenied, "rules"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanStop(tc.ctx, tc.err); got != tc.want {
				t.Fatalf("cleanStop = %v, want %v", got, tc.want)
			}
		})
	}
}
