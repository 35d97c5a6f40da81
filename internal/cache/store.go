// Package cache holds the keyed in-memory collections the sync engine
// reconciles into, plus read-side queries over them.
package cache

import (
	"sync"
	"time"
)

// Schema describes how to read the fields derived queries need from T.
// Only Key is required.
type Schema[T any] struct {
	Key          func(T) string
	CreatedAt    func(T) time.Time
	Participants func(T) []string
	Text         map[string]func(T) string
}

// Store is a keyed collection with at most one entry per key. Entries keep
// the position they were first inserted at until removed. It is safe for
// concurrent readers; writes are expected from a single owner at a time.
type Store[T any] struct {
	schema Schema[T]

	mu    sync.RWMutex
	items map[string]T
	order []string

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

func NewStore[T any](schema Schema[T]) *Store[T] {
	return &Store[T]{
		schema: schema,
		items:  make(map[string]T),
		subs:   make(map[int]chan struct{}),
	}
}

func (s *Store[T]) Schema() Schema[T] { return s.schema }

// Upsert replaces the entry for key in place, or appends it. It reports
// whether the key was new.
func (s *Store[T]) Upsert(key string, rec T) bool {
	s.mu.Lock()
	_, exists := s.items[key]
	s.items[key] = rec
	if !exists {
		s.order = append(s.order, key)
	}
	s.mu.Unlock()

	s.notify()
	return !exists
}

// Put upserts rec under the schema's key.
func (s *Store[T]) Put(rec T) bool {
	return s.Upsert(s.schema.Key(rec), rec)
}

// Remove deletes key. Removing an absent key changes nothing.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	if _, ok := s.items[key]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	return rec, ok
}

// All returns a snapshot in insertion order. Later writes do not affect it.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T]) Clear() {
	s.mu.Lock()
	empty := len(s.items) == 0
	s.items = make(map[string]T)
	s.order = nil
	s.mu.Unlock()

	if !empty {
		s.notify()
	}
}

// Subscribe returns a channel that receives a signal after writes. Signals
// coalesce: a slow observer sees one pending signal, then re-reads the store.
func (s *Store[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[T]) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
