package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hangoutsync/internal/auth"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/gateway"
	"hangoutsync/internal/remote"
	"hangoutsync/internal/remote/wsfeed"
	"hangoutsync/internal/service"
	"hangoutsync/internal/store/sqlite"
)

type testEnv struct {
	srv  *httptest.Server
	docs *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	docs, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"), docstore.NewHub(16, nil))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	base := service.Base{Docs: docs}
	notes := &service.NotificationService{Base: base, Tokens: docs}
	shutdown := make(chan struct{})
	h := NewRouter(RouterOpts{
		Shutdown: shutdown,
		Docs:     docs,
		Accounts: &service.AccountService{
			Base:     base,
			Accounts: docs,
			Tokens:   auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		},
		Friends:       &service.FriendsService{Base: base, Notifier: notes},
		Hangouts:      &service.HangoutService{Base: base, Notifier: notes},
		Notifications: notes,
		Secrets:       &service.SecretService{Source: service.StaticSecret("search-key")},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		close(shutdown)
		srv.Close()
	})
	return &testEnv{srv: srv, docs: docs}
}

func (e *testEnv) register(t *testing.T, email, username string) service.SignIn {
	t.Helper()
	body, _ := json.Marshal(service.Registration{Email: email, Password: "long enough pw", Username: username})
	resp, err := http.Post(e.srv.URL+"/v1/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out service.SignIn
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out
}

func (e *testEnv) clients(t *testing.T, token string) (*gateway.Client, *wsfeed.Source) {
	t.Helper()
	tok := func() string { return token }
	gw, err := gateway.New(gateway.Options{BaseURL: e.srv.URL, Token: tok})
	require.NoError(t, err)
	src, err := wsfeed.New(wsfeed.Options{BaseURL: e.srv.URL, Token: tok})
	require.NoError(t, err)
	return gw, src
}

func nextEvent(t *testing.T, ch <-chan remote.Event) remote.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "watch closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
	return remote.Event{}
}

func TestFriendRequestFlowOverHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com", "alice")
	bob := env.register(t, "bob@example.com", "bob")
	aliceGW, aliceSrc := env.clients(t, alice.Token)
	bobGW, bobSrc := env.clients(t, bob.Token)

	inbox, err := bobSrc.Watch(ctx, remote.Query{Collection: remote.NotificationsCollection(bob.UID)})
	require.NoError(t, err)

	nid, err := aliceGW.SendFriendRequest(ctx, functions.SendFriendRequestRequest{
		FromUID:        alice.UID,
		ToUID:          bob.UID,
		FromUsername:   "alice",
		FromAvatarURLs: []string{"https://example.com/a.png"},
	})
	require.NoError(t, err)

	ev := nextEvent(t, inbox)
	require.NoError(t, ev.Err)
	require.Len(t, ev.Changes, 1)
	require.Equal(t, remote.Added, ev.Changes[0].Kind)
	require.Equal(t, nid, ev.Changes[0].Doc.ID)

	_, err = aliceGW.SendFriendRequest(ctx, functions.SendFriendRequestRequest{
		FromUID: alice.UID, ToUID: bob.UID, FromUsername: "alice", FromAvatarURLs: []string{"https://example.com/a.png"},
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.NoError(t, bobGW.RespondToFriendRequest(ctx, functions.RespondToFriendRequestRequest{FromUID: alice.UID, ToUID: bob.UID}))

	friends, err := aliceSrc.Fetch(ctx, remote.Query{Collection: remote.FriendsCollection(alice.UID)})
	require.NoError(t, err)
	require.Len(t, friends, 1)
	require.Equal(t, bob.UID, friends[0].ID)

	ev = nextEvent(t, inbox)
	require.Equal(t, remote.Modified, ev.Changes[0].Kind)
	require.Equal(t, string(domain.NotificationAccepted), ev.Changes[0].Doc.Data["status"])
}

func TestDocumentAccessOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com", "alice")
	bob := env.register(t, "bob@example.com", "bob")
	_, aliceSrc := env.clients(t, alice.Token)

	profile, err := aliceSrc.Get(ctx, remote.UsersCollection, bob.UID)
	require.NoError(t, err)
	require.Equal(t, "bob", profile.Data["username"])

	_, err = aliceSrc.Fetch(ctx, remote.Query{Collection: remote.NotificationsCollection(bob.UID)})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = aliceSrc.Get(ctx, remote.UsersCollection, "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, aliceSrc.Merge(ctx, remote.UsersCollection, alice.UID, map[string]any{"fullName": "Alice A"}))
	doc, err := env.docs.Get(ctx, remote.UsersCollection, alice.UID)
	require.NoError(t, err)
	require.Equal(t, "Alice A", doc.Data["fullName"])

	err = aliceSrc.Merge(ctx, remote.UsersCollection, bob.UID, map[string]any{"fullName": "Mallory"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = aliceSrc.Merge(ctx, remote.PendingRequestsCollection(bob.UID), alice.UID, map[string]any{"status": "rejected"})
	require.ErrorIs(t, err, domain.ErrNotFound, "rejecting a request that was never sent")

	_, anon := env.clients(t, "")
	_, err = anon.Get(ctx, remote.UsersCollection, bob.UID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCallablesOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com", "alice")
	bob := env.register(t, "bob@example.com", "bob")
	aliceGW, aliceSrc := env.clients(t, alice.Token)
	_, bobSrc := env.clients(t, bob.Token)

	key, err := aliceGW.SearchServiceAPIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "search-key", key)

	id, err := aliceGW.CreateHangout(ctx, functions.CreateHangoutRequest{
		CreationDate:    time.Now().UnixMilli(),
		Duration:        domain.DurationQuick,
		Vibe:            domain.VibeChill,
		ParticipantUIDs: []string{bob.UID},
		OwnerUID:        alice.UID,
	})
	require.NoError(t, err)

	h, err := bobSrc.Get(ctx, remote.HangoutsCollection, id)
	require.NoError(t, err)
	require.Equal(t, string(domain.HangoutPending), h.Data["status"])

	_, err = aliceGW.CreateHangout(ctx, functions.CreateHangoutRequest{
		CreationDate:    time.Now().UnixMilli(),
		Duration:        domain.DurationQuick,
		Vibe:            domain.VibeChill,
		ParticipantUIDs: []string{alice.UID},
		OwnerUID:        bob.UID,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	refs, err := aliceSrc.Fetch(ctx, remote.Query{Collection: remote.UserHangoutsCollection(alice.UID)})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	resp, err := http.Post(env.srv.URL+functions.Path("noSuchFunction"), "application/json", bytes.NewReader([]byte(`{"data":{}}`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+functions.Path("noSuchFunction"), bytes.NewReader([]byte(`{"data":{}}`)))
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "alice")

	post := func(body string) *http.Response {
		resp, err := http.Post(env.srv.URL+"/v1/auth/login", "application/json", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	require.Equal(t, http.StatusOK, post(`{"email":"Alice@example.com","password":"long enough pw"}`).StatusCode)

	resp := post(`{"email":"alice@example.com","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var env2 errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env2))
	require.Equal(t, "invalid_credentials", env2.Error.Code)

	require.Equal(t, http.StatusBadRequest, post(`{"email":"alice@example.com"}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, post(`{"email":"a","password":"b","extra":1}`).StatusCode)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRouterPassesWildcardsToHandlers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com", "alice")

	status, body := env.do(t, http.MethodPost, "/v1/functions/"+functions.GetSearchServiceAPIKey, alice.Token, map[string]any{"data": map[string]any{}})
	require.Equal(t, http.StatusOK, status, "%v", body)
	require.Equal(t, "search-key", body["result"].(map[string]any)["apiKey"])

	status, body = env.do(t, http.MethodGet, "/v1/docs/users/"+alice.UID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	require.Equal(t, alice.UID, body["id"])

	status, _ = env.do(t, http.MethodPatch, "/v1/docs/users/"+alice.UID, alice.Token, map[string]any{"fields": map[string]any{"fullName": "Alice A"}})
	require.Equal(t, http.StatusNoContent, status)

	status, body = env.do(t, http.MethodGet, "/v1/docs/users", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	require.Len(t, body["documents"], 1)
}
