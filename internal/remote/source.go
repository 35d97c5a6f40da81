// Package remote describes the document store the sync core reads from:
// point reads, bulk queries and live change subscriptions.
package remote

import (
	"context"
	"fmt"
)

type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

func (k ChangeKind) Valid() bool {
	switch k {
	case Added, Modified, Removed:
		return true
	}
	return false
}

// Document is a loosely typed wire document. Field order is irrelevant.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

// Change is one tagged diff against a query's result set. Data is nil for removals.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Doc  Document   `json:"doc"`
}

// Event is one delivery from a live subscription: either a batch of changes
// in emission order, or a transport error after which the channel closes.
type Event struct {
	Changes []Change
	Err     error
}

type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	OrderBy    string
	Descending bool
	Limit      int
	Where      []Filter
}

func (q Query) String() string {
	s := q.Collection
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		s += fmt.Sprintf(" order by %s %s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		s += fmt.Sprintf(" limit %d", q.Limit)
	}
	return s
}

// Source is implemented by every remote collection client. Watch delivers
// events until ctx is cancelled and then closes the channel; it never
// completes on its own.
type Source interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Fetch(ctx context.Context, q Query) ([]Document, error)
	Watch(ctx context.Context, q Query) (<-chan Event, error)
}

// Writer merges fields into a single document. It backs the few client
// writes that do not go through a callable, such as rejecting a friend
// request on the requester's pending record.
type Writer interface {
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
}
