package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hangoutsync/internal/codec"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
	"hangoutsync/internal/store/sqlite"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "svc.db"), docstore.NewHub(16, nil))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBase(docs docstore.Store) Base {
	var (
		mu sync.Mutex
		n  int
	)
	return Base{
		Docs: docs,
		Now:  func() time.Time { return testNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

func seedUser(t *testing.T, docs docstore.Store, uid, username string) {
	t.Helper()
	u := domain.UserRecord{UID: uid, Username: domain.StringPtr(username)}
	if err := docs.Commit(context.Background(), []docstore.Write{
		docstore.Set(remote.UsersCollection, uid, codec.EncodeUser(u)),
	}); err != nil {
		t.Fatalf("seed user %s: %v", uid, err)
	}
}

func mustGet(t *testing.T, docs docstore.Store, collection, id string) map[string]any {
	t.Helper()
	doc, err := docs.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("get %s/%s: %v", collection, id, err)
	}
	return doc.Data
}

type pushed struct {
	uid  string
	push Push
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []pushed
}

func (r *recordingNotifier) Notify(_ context.Context, uid string, p Push) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, pushed{uid: uid, push: p})
}

// rejectWrites is what the target's client writes when it rejects a request.
func rejectWrites(from, to string) []docstore.Write {
	return []docstore.Write{
		docstore.Update(remote.PendingRequestsCollection(from), to, map[string]any{"status": string(domain.RequestRejected)}),
	}
}
