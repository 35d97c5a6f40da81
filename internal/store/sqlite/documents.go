package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q queryRower, collection, id string) (map[string]any, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}
	return decodeData(raw)
}

func decodeData(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode document data: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	data, err := getDocument(ctx, s.db, collection, id)
	if err != nil {
		return remote.Document{}, err
	}
	if data == nil {
		return remote.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return remote.Document{ID: id, Data: data}, nil
}

func (s *Store) Query(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM documents WHERE collection = ?`, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, remote.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docstore.Evaluate(q, docs), nil
}

// Commit applies writes in one transaction and, once committed, publishes
// the resulting changes grouped by collection.
func (s *Store) Commit(ctx context.Context, writes []docstore.Write) error {
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	when := s.now().UnixMilli()
	var changed []docstore.Changed
	for _, w := range writes {
		current, err := getDocument(ctx, tx, w.Collection, w.ID)
		if err != nil {
			return err
		}
		if w.Op == docstore.OpUpdate && current == nil {
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, domain.ErrNotFound)
		}
		next, kind, ok := docstore.Apply(w, current)
		if !ok {
			continue
		}
		if kind == remote.Removed {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, w.Collection, w.ID); err != nil {
				return fmt.Errorf("delete %s/%s: %w", w.Collection, w.ID, err)
			}
			changed = append(changed, docstore.Changed{Collection: w.Collection, Change: remote.Change{Kind: kind, Doc: remote.Document{ID: w.ID}}})
			continue
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		const upsert = `
			INSERT INTO documents (collection, id, data, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, id)
			DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, upsert, w.Collection, w.ID, string(raw), when); err != nil {
			return fmt.Errorf("write %s/%s: %w", w.Collection, w.ID, err)
		}
		// Subscribers see the same JSON shapes a reader of the table would.
		data, err := decodeData(string(raw))
		if err != nil {
			return err
		}
		changed = append(changed, docstore.Changed{Collection: w.Collection, Change: remote.Change{Kind: kind, Doc: remote.Document{ID: w.ID, Data: data}}})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if s.hub != nil {
		s.hub.PublishBatch(changed)
	}
	return nil
}
