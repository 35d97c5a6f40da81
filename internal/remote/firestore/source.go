// Package firestore adapts a Cloud Firestore client to remote.Source.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type Source struct {
	client *firestore.Client
	logger *slog.Logger
}

var (
	_ remote.Source = (*Source)(nil)
	_ remote.Writer = (*Source)(nil)
)

// Open dials Firestore for projectID. credentialsFile may be empty to use
// application default credentials.
func Open(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*Source, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return New(client, logger), nil
}

func New(client *firestore.Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, logger: logger}
}

func (s *Source) Close() error { return s.client.Close() }

func (s *Source) collection(path string) (*firestore.CollectionRef, error) {
	if !remote.ValidCollection(path) {
		return nil, fmt.Errorf("%q: %w", path, remote.ErrBadPath)
	}
	col := s.client.Collection(path)
	if col == nil {
		return nil, fmt.Errorf("%q: %w", path, remote.ErrBadPath)
	}
	return col, nil
}

func (s *Source) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	col, err := s.collection(collection)
	if err != nil {
		return remote.Document{}, err
	}
	snap, err := col.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return remote.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
		}
		return remote.Document{}, fmt.Errorf("firestore: get %s/%s: %w", collection, id, err)
	}
	return toDocument(snap), nil
}

// Merge writes fields onto the document and leaves other fields alone.
func (s *Source) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if _, err := col.Doc(id).Set(ctx, fields, firestore.MergeAll); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
		}
		return fmt.Errorf("firestore: merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Source) Fetch(ctx context.Context, q remote.Query) ([]remote.Document, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: fetch %s: %w", q, err)
	}
	out := make([]remote.Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toDocument(snap))
	}
	return out, nil
}

// Watch streams query snapshots as change batches. Each snapshot's
// document changes become one Event, in the order Firestore reports them.
func (s *Source) Watch(ctx context.Context, q remote.Query) (<-chan remote.Event, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	it := fq.Snapshots(ctx)
	out := make(chan remote.Event, 1)

	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if cleanStop(ctx, err) {
					return
				}
				s.logger.Warn("firestore: snapshot stream ended", "query", q.String(), "err", err)
				select {
				case out <- remote.Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(snap.Changes) == 0 {
				continue
			}
			ev := remote.Event{Changes: convertChanges(snap.Changes)}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Source) query(q remote.Query) (firestore.Query, error) {
	col, err := s.collection(q.Collection)
	if err != nil {
		return firestore.Query{}, err
	}
	fq := col.Query
	for _, f := range q.Where {
		fq = fq.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

func convertChanges(changes []firestore.DocumentChange) []remote.Change {
	out := make([]remote.Change, 0, len(changes))
	for _, ch := range changes {
		kind, ok := changeKind(ch.Kind)
		if !ok {
			continue
		}
		doc := remote.Document{ID: ch.Doc.Ref.ID}
		if kind != remote.Removed {
			doc = toDocument(ch.Doc)
		}
		out = append(out, remote.Change{Kind: kind, Doc: doc})
	}
	return out
}

func changeKind(k firestore.DocumentChangeKind) (remote.ChangeKind, bool) {
	switch k {
	case firestore.DocumentAdded:
		return remote.Added, true
	case firestore.DocumentModified:
		return remote.Modified, true
	case firestore.DocumentRemoved:
		return remote.Removed, true
	}
	return "", false
}

func toDocument(snap *firestore.DocumentSnapshot) remote.Document {
	return remote.Document{ID: snap.Ref.ID, Data: snap.Data()}
}

// cleanStop reports whether err ends the stream because the caller detached.
func cleanStop(ctx context.Context, err error) bool {
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	if status.Code(err) == codes.Canceled {
		return true
	}
	return ctx.Err() != nil
}
