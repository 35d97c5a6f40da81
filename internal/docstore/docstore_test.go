package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hangoutsync/internal/remote"
)

func TestApply(t *testing.T) {
	next, kind, ok := Apply(Set("users", "u1", map[string]any{"a": 1}), nil)
	require.True(t, ok)
	require.Equal(t, remote.Added, kind)
	require.Equal(t, map[string]any{"a": 1}, next)

	next, kind, ok = Apply(Merge("users", "u1", map[string]any{"b": 2}), map[string]any{"a": 1})
	require.True(t, ok)
	require.Equal(t, remote.Modified, kind)
	require.Equal(t, map[string]any{"a": 1, "b": 2}, next)

	next, kind, ok = Apply(Set("users", "u1", nil), map[string]any{"a": 1})
	require.True(t, ok)
	require.Equal(t, remote.Modified, kind)
	require.NotNil(t, next)
	require.Empty(t, next)

	_, _, ok = Apply(Delete("users", "u1"), nil)
	require.False(t, ok, "deleting an absent document changes nothing")

	_, kind, ok = Apply(Delete("users", "u1"), map[string]any{"a": 1})
	require.True(t, ok)
	require.Equal(t, remote.Removed, kind)
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	current := map[string]any{"a": 1}
	next, _, _ := Apply(Merge("users", "u1", map[string]any{"b": 2}), current)
	next["c"] = 3
	require.Equal(t, map[string]any{"a": 1}, current)
}

func TestWriteValidate(t *testing.T) {
	require.NoError(t, Set("users/u1/friends", "u2", nil).Validate())
	require.Error(t, Set("users/u1", "x", nil).Validate())
	require.Error(t, Set("users", "", nil).Validate())
	require.Error(t, Write{Op: "upsert", Collection: "users", ID: "u1"}.Validate())
}

func docs() []remote.Document {
	return []remote.Document{
		{ID: "c", Data: map[string]any{"createdAt": float64(200), "status": "unread"}},
		{ID: "a", Data: map[string]any{"createdAt": int64(100), "status": "read"}},
		{ID: "b", Data: map[string]any{"createdAt": float64(200), "status": "unread"}},
		{ID: "d", Data: map[string]any{"status": "unread"}},
	}
}

func ids(ds []remote.Document) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		q    remote.Query
		want []string
	}{
		{"unordered sorts by id", remote.Query{}, []string{"a", "b", "c", "d"}},
		{"ascending missing first", remote.Query{OrderBy: "createdAt"}, []string{"d", "a", "b", "c"}},
		{"descending ties by id", remote.Query{OrderBy: "createdAt", Descending: true}, []string{"b", "c", "a", "d"}},
		{"limit", remote.Query{OrderBy: "createdAt", Descending: true, Limit: 2}, []string{"b", "c"}},
		{"where", remote.Query{Where: []remote.Filter{{Field: "status", Value: "unread"}}}, []string{"b", "c", "d"}},
		{"where numeric across types", remote.Query{Where: []remote.Filter{{Field: "createdAt", Value: float64(100)}}}, []string{"a"}},
		{"where time as millis", remote.Query{Where: []remote.Filter{{Field: "createdAt", Value: time.UnixMilli(100)}}}, []string{"a"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ids(Evaluate(tc.q, docs())))
		})
	}
}

func TestFilterChanges(t *testing.T) {
	q := remote.Query{Where: []remote.Filter{{Field: "status", Value: "unread"}}}
	in := []remote.Change{
		{Kind: remote.Added, Doc: remote.Document{ID: "1", Data: map[string]any{"status": "read"}}},
		{Kind: remote.Added, Doc: remote.Document{ID: "2", Data: map[string]any{"status": "unread"}}},
		{Kind: remote.Modified, Doc: remote.Document{ID: "3", Data: map[string]any{"status": "read"}}},
		{Kind: remote.Removed, Doc: remote.Document{ID: "4"}},
	}
	out := FilterChanges(q, in)
	require.Equal(t, []remote.Change{
		{Kind: remote.Added, Doc: remote.Document{ID: "2", Data: map[string]any{"status": "unread"}}},
		{Kind: remote.Removed, Doc: remote.Document{ID: "3"}},
		{Kind: remote.Removed, Doc: remote.Document{ID: "4"}},
	}, out)

	require.Equal(t, in, FilterChanges(remote.Query{}, in))
}

func change(id string) []remote.Change {
	return []remote.Change{{Kind: remote.Added, Doc: remote.Document{ID: id}}}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe("users/u1/friends")
	b := h.Subscribe("users/u1/friends")
	other := h.Subscribe("users/u2/friends")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	h.Publish("users/u1/friends", change("x"))
	require.Equal(t, change("x"), <-a.C)
	require.Equal(t, change("x"), <-b.C)
	select {
	case got := <-other.C:
		t.Fatalf("unrelated collection received %v", got)
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(1, nil)
	slow := h.Subscribe("c")
	fast := h.Subscribe("c")
	defer fast.Close()

	h.Publish("c", change("1"))
	<-fast.C
	h.Publish("c", change("2"))

	require.Equal(t, change("1"), <-slow.C)
	_, open := <-slow.C
	require.False(t, open, "slow subscriber should be closed")
	require.Equal(t, change("2"), <-fast.C)
	require.Equal(t, 1, h.Subscribers("c"))

	slow.Close() // already dropped
}

func TestHubCloseIdempotent(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe("c")
	s.Close()
	s.Close()
	require.Equal(t, 0, h.Subscribers("c"))
	h.Publish("c", change("1"))
}

func TestHubPublishBatchGroupsByCollection(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe("a")
	b := h.Subscribe("b")
	defer a.Close()
	defer b.Close()

	h.PublishBatch([]Changed{
		{Collection: "a", Change: change("1")[0]},
		{Collection: "b", Change: change("2")[0]},
		{Collection: "a", Change: change("3")[0]},
	})
	require.Len(t, <-a.C, 2)
	require.Len(t, <-b.C, 1)
}
