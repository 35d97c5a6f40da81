// Package service implements the callable functions and sign-in flows on
// top of a docstore.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hangoutsync/internal/codec"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

// Base carries the collaborators every service needs.
type Base struct {
	Docs   docstore.Store
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

func (b *Base) now() time.Time {
	if b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now().UTC()
}

func (b *Base) newID() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

func (b *Base) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// requireCaller fails with ErrForbidden unless caller is the uid named by field.
func requireCaller(caller, uid, field string) error {
	if caller == "" {
		return domain.ErrUnauthorized
	}
	if caller != uid {
		return fmt.Errorf("%s must be the signed-in user: %w", field, domain.ErrForbidden)
	}
	return nil
}

// lookup returns the document's data, or nil when it does not exist.
func (b *Base) lookup(ctx context.Context, collection, id string) (map[string]any, error) {
	doc, err := b.Docs.Get(ctx, collection, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (b *Base) requireUser(ctx context.Context, uid string) (domain.UserRecord, error) {
	doc, err := b.Docs.Get(ctx, remote.UsersCollection, uid)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("user %s: %w", uid, err)
	}
	u, err := codec.DecodeUser(doc.ID, doc.Data)
	if err != nil {
		codec.NoteSkip(b.logger(), err)
		return domain.UserRecord{UID: uid}, nil
	}
	return u, nil
}
