package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hangoutsync/internal/remote"
	"hangoutsync/internal/remote/memsource"
)

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("HANGOUT_BASE_URL", "https://hangouts.example.com")
	t.Setenv("HANGOUT_UID", "u1")
	t.Setenv("HANGOUT_PAGE_SIZE", "20")
	t.Setenv("HANGOUT_OFFLINE", "true")

	s, err := loadSettings()
	require.NoError(t, err)
	require.Equal(t, "https://hangouts.example.com", s.BaseURL)
	require.Equal(t, "u1", s.UID)
	require.Equal(t, 20, s.PageSize)
	require.True(t, s.Offline)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"users": {"u1": {"username": "ana"}},
		"users/u1/friends": {"u2": {"friendUid": "u2", "establishedAt": 1700000000000}}
	}`), 0o600))

	src := memsource.New()
	require.NoError(t, loadFixture(path, src))

	doc, err := src.Get(context.Background(), remote.UsersCollection, "u1")
	require.NoError(t, err)
	require.Equal(t, "ana", doc.Data["username"])

	friends, err := src.Fetch(context.Background(), remote.Query{Collection: remote.FriendsCollection("u1")})
	require.NoError(t, err)
	require.Len(t, friends, 1)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"users/u1": {"x": {}}}`), 0o600))
	require.ErrorIs(t, loadFixture(bad, memsource.New()), remote.ErrBadPath)
}

func TestOfflineConnect(t *testing.T) {
	deps, release, err := connect(context.Background(), settings{Offline: true, UID: "u1", PageSize: 10}, newLogger())
	require.NoError(t, err)
	defer release()

	_, err = deps.Gateway.SearchServiceAPIKey(context.Background())
	require.True(t, errors.Is(err, errOffline))
	uid, err := deps.Identity.Require()
	require.NoError(t, err)
	require.Equal(t, "u1", uid)
}
