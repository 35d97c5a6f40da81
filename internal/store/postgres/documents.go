package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

// DocumentStore keeps every collection in one jsonb table. Changes reach the
// hub through the documents trigger and Listen, so every server instance
// sharing the database sees every commit.
type DocumentStore struct {
	pool *pgxpool.Pool
	hub  *docstore.Hub
	now  func() time.Time
}

var _ docstore.Store = (*DocumentStore)(nil)

func NewDocumentStore(pool *pgxpool.Pool, hub *docstore.Hub) *DocumentStore {
	return &DocumentStore{pool: pool, hub: hub, now: time.Now}
}

func (s *DocumentStore) Hub() *docstore.Hub { return s.hub }

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDocument(ctx context.Context, q querier, collection, id string, lock bool) (map[string]any, error) {
	sql := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	if err := q.QueryRow(ctx, sql, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}
	return decodeData(raw)
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	data, err := getDocument(ctx, s.pool, collection, id, false)
	if err != nil {
		return remote.Document{}, err
	}
	if data == nil {
		return remote.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return remote.Document{ID: id, Data: data}, nil
}

func (s *DocumentStore) Query(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	const sql = `
		SELECT id, data
		FROM documents
		WHERE collection = $1
	`
	rows, err := s.pool.Query(ctx, sql, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
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

func (s *DocumentStore) Commit(ctx context.Context, writes []docstore.Write) error {
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	when := s.now().UTC()
	for _, w := range writes {
		current, err := getDocument(ctx, tx, w.Collection, w.ID, true)
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
			if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, w.Collection, w.ID); err != nil {
				return fmt.Errorf("delete %s/%s: %w", w.Collection, w.ID, err)
			}
			continue
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		const upsert = `
			INSERT INTO documents (collection, id, data, updated_at)
			VALUES ($1, $2, $3::jsonb, $4)
			ON CONFLICT (collection, id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.Exec(ctx, upsert, w.Collection, w.ID, string(raw), when); err != nil {
			return fmt.Errorf("write %s/%s: %w", w.Collection, w.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
