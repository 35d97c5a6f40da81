package remote

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitDocPath(t *testing.T) {
	col, id, err := SplitDocPath("/users/u1/pendingFriendRequests/u2/")
	require.NoError(t, err)
	require.Equal(t, "users/u1/pendingFriendRequests", col)
	require.Equal(t, "u2", id)

	for _, bad := range []string{"", "users", "users/u1/friends", "users//x/y"} {
		_, _, err := SplitDocPath(bad)
		require.True(t, errors.Is(err, ErrBadPath), bad)
	}
}

func TestOwnerOf(t *testing.T) {
	uid, ok := OwnerOf(NotificationsCollection("u9"))
	require.True(t, ok)
	require.Equal(t, "u9", uid)

	_, ok = OwnerOf(HangoutsCollection)
	require.False(t, ok)
}

func TestQueryValuesRoundTrip(t *testing.T) {
	q := Query{
		Collection: NotificationsCollection("u1"),
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      25,
		Where:      []Filter{{Field: "status", Value: "unread"}},
	}
	got, err := ParseQuery(q.Values())
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestParseQueryRejects(t *testing.T) {
	cases := []url.Values{
		{"collection": {"users/u1"}},
		{"collection": {"users"}, "limit": {"-1"}},
		{"collection": {"users"}, "desc": {"maybe"}},
		{"collection": {"users"}, "where": {"status"}},
		{"collection": {"users"}, "where": {"status==unquoted"}},
	}
	for _, v := range cases {
		_, err := ParseQuery(v)
		require.Error(t, err, v.Encode())
	}
}
