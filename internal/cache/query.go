package cache

import (
	"slices"
	"strings"
	"time"
)

// FilterBySubstring returns records where any of the named text fields
// contains query, ignoring case. With no field names every text field is
// searched. A blank query matches nothing.
func (s *Store[T]) FilterBySubstring(query string, fields ...string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []T{}
	}
	return s.filterText(q, fields)
}

// FilterBySubstringOrAll is FilterBySubstring, except a blank query
// returns every record.
func (s *Store[T]) FilterBySubstringOrAll(query string, fields ...string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.All()
	}
	return s.filterText(q, fields)
}

func (s *Store[T]) filterText(q string, fields []string) []T {
	getters := make([]func(T) string, 0, len(s.schema.Text))
	if len(fields) == 0 {
		for _, name := range sortedFieldNames(s.schema.Text) {
			getters = append(getters, s.schema.Text[name])
		}
	} else {
		for _, name := range fields {
			if g, ok := s.schema.Text[name]; ok {
				getters = append(getters, g)
			}
		}
	}

	out := []T{}
	for _, rec := range s.All() {
		for _, g := range getters {
			if strings.Contains(strings.ToLower(g(rec)), q) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func sortedFieldNames[T any](m map[string]func(T) string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// FilterByParticipant returns records whose participants include uid,
// newest first, ties broken by key ascending.
func (s *Store[T]) FilterByParticipant(uid string) []T {
	out := []T{}
	if s.schema.Participants == nil {
		return out
	}
	for _, rec := range s.All() {
		if slices.Contains(s.schema.Participants(rec), uid) {
			out = append(out, rec)
		}
	}
	s.sortByCreation(out)
	return out
}

// SortedByCreation returns every record, newest first, ties broken by key.
func (s *Store[T]) SortedByCreation() []T {
	out := s.All()
	s.sortByCreation(out)
	return out
}

func (s *Store[T]) sortByCreation(recs []T) {
	if s.schema.CreatedAt == nil {
		return
	}
	SortByCreatedDesc(recs, s.schema.CreatedAt, s.schema.Key)
}

// SortByCreatedDesc stable-sorts recs by at descending with key ascending
// as the tie-break, so equal timestamps order deterministically.
func SortByCreatedDesc[T any](recs []T, at func(T) time.Time, key func(T) string) {
	slices.SortStableFunc(recs, func(a, b T) int {
		if c := at(b).Compare(at(a)); c != 0 {
			return c
		}
		return strings.Compare(key(a), key(b))
	})
}
