// Package docstore is the server's document model: collections of JSON
// documents addressed by slash paths, atomic multi-document commits, and a
// change feed per collection.
package docstore

import (
	"context"
	"fmt"
	"maps"

	"hangoutsync/internal/remote"
)

type Op string

const (
	// OpSet replaces the document, creating it if absent.
	OpSet Op = "set"
	// OpMerge copies fields into the document, creating it if absent.
	OpMerge Op = "merge"
	// OpUpdate copies fields into an existing document. The commit fails
	// with domain.ErrNotFound if it is absent.
	OpUpdate Op = "update"
	// OpDelete removes the document. Deleting an absent document is a no-op.
	OpDelete Op = "delete"
)

type Write struct {
	Op         Op
	Collection string
	ID         string
	Data       map[string]any
}

func Set(collection, id string, data map[string]any) Write {
	return Write{Op: OpSet, Collection: collection, ID: id, Data: data}
}

func Merge(collection, id string, data map[string]any) Write {
	return Write{Op: OpMerge, Collection: collection, ID: id, Data: data}
}

func Update(collection, id string, data map[string]any) Write {
	return Write{Op: OpUpdate, Collection: collection, ID: id, Data: data}
}

func Delete(collection, id string) Write {
	return Write{Op: OpDelete, Collection: collection, ID: id}
}

func (w Write) Validate() error {
	switch w.Op {
	case OpSet, OpMerge, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("write %s/%s: unknown op %q", w.Collection, w.ID, w.Op)
	}
	if !remote.ValidCollection(w.Collection) || w.ID == "" {
		return fmt.Errorf("write %s/%s: %w", w.Collection, w.ID, remote.ErrBadPath)
	}
	return nil
}

// Store is implemented by the postgres and sqlite backends. Commit applies
// every write or none of them. Observers see committed changes on Hub().
type Store interface {
	Get(ctx context.Context, collection, id string) (remote.Document, error)
	Query(ctx context.Context, q remote.Query) ([]remote.Document, error)
	Commit(ctx context.Context, writes []Write) error
	Hub() *Hub
}

// Apply computes the document that results from w given the current data
// (nil when absent) and the change kind to report. ok is false when nothing
// changes.
func Apply(w Write, current map[string]any) (next map[string]any, kind remote.ChangeKind, ok bool) {
	switch w.Op {
	case OpDelete:
		if current == nil {
			return nil, "", false
		}
		return nil, remote.Removed, true
	case OpSet:
		next = maps.Clone(w.Data)
	case OpMerge, OpUpdate:
		next = maps.Clone(current)
		if next == nil {
			next = map[string]any{}
		}
		maps.Copy(next, w.Data)
	}
	if next == nil {
		next = map[string]any{}
	}
	if current == nil {
		return next, remote.Added, true
	}
	return next, remote.Modified, true
}
