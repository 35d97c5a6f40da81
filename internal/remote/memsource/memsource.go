// Package memsource is an in-memory remote.Source. Writes are published to
// live subscribers the same way a hosted document store would.
package memsource

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type subscriber struct {
	ctx context.Context
	q   remote.Query
	ch  chan remote.Event
}

type Source struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any
	subs map[string]map[*subscriber]struct{}

	// FetchErr, when set, is returned by Get and Fetch.
	FetchErr error
}

var _ remote.Source = (*Source)(nil)

func New() *Source {
	return &Source{
		docs: make(map[string]map[string]map[string]any),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Set creates or replaces a document and publishes added or modified.
func (s *Source) Set(collection, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.docs[collection]
	if col == nil {
		col = make(map[string]map[string]any)
		s.docs[collection] = col
	}
	kind := remote.Modified
	if _, ok := col[id]; !ok {
		kind = remote.Added
	}
	col[id] = maps.Clone(data)
	s.publishLocked(collection, remote.Change{Kind: kind, Doc: remote.Document{ID: id, Data: maps.Clone(data)}})
}

// Delete removes a document and publishes removed. Missing documents still publish.
func (s *Source) Delete(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col := s.docs[collection]; col != nil {
		delete(col, id)
	}
	s.publishLocked(collection, remote.Change{Kind: remote.Removed, Doc: remote.Document{ID: id}})
}

// Publish delivers raw changes without touching stored documents.
func (s *Source) Publish(collection string, changes ...remote.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(collection, changes...)
}

// Fail sends err to every subscriber of collection and closes their streams.
func (s *Source) Fail(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs[collection] {
		select {
		case sub.ch <- remote.Event{Err: err}:
		case <-sub.ctx.Done():
		}
		close(sub.ch)
		delete(s.subs[collection], sub)
	}
}

// Subscribers reports the number of live subscriptions on collection.
func (s *Source) Subscribers(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[collection])
}

func (s *Source) publishLocked(collection string, changes ...remote.Change) {
	for sub := range s.subs[collection] {
		filtered := docstore.FilterChanges(sub.q, changes)
		if len(filtered) == 0 {
			continue
		}
		select {
		case sub.ch <- remote.Event{Changes: filtered}:
		case <-sub.ctx.Done():
		}
	}
}

func (s *Source) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return remote.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return remote.Document{}, s.FetchErr
	}
	data, ok := s.docs[collection][id]
	if !ok {
		return remote.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return remote.Document{ID: id, Data: maps.Clone(data)}, nil
}

func (s *Source) Fetch(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return s.queryLocked(q), nil
}

func (s *Source) Watch(ctx context.Context, q remote.Query) (<-chan remote.Event, error) {
	sub := &subscriber{ctx: ctx, q: q, ch: make(chan remote.Event, 16)}

	s.mu.Lock()
	if s.subs[q.Collection] == nil {
		s.subs[q.Collection] = make(map[*subscriber]struct{})
	}
	s.subs[q.Collection][sub] = struct{}{}
	// The first event carries the current result set as additions. It is
	// queued before unlocking so later writes cannot overtake it.
	if initial := s.queryLocked(q); len(initial) > 0 {
		changes := make([]remote.Change, 0, len(initial))
		for _, d := range initial {
			changes = append(changes, remote.Change{Kind: remote.Added, Doc: d})
		}
		sub.ch <- remote.Event{Changes: changes}
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[q.Collection][sub]; ok {
			delete(s.subs[q.Collection], sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

func (s *Source) queryLocked(q remote.Query) []remote.Document {
	col := s.docs[q.Collection]
	docs := make([]remote.Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, remote.Document{ID: id, Data: maps.Clone(data)})
	}
	return docstore.Evaluate(q, docs)
}

var _ remote.Writer = (*Source)(nil)

// Merge updates fields on an existing document and publishes modified.
func (s *Source) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return s.FetchErr
	}
	data, ok := s.docs[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	maps.Copy(data, fields)
	s.publishLocked(collection, remote.Change{Kind: remote.Modified, Doc: remote.Document{ID: id, Data: maps.Clone(data)}})
	return nil
}
