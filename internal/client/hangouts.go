package client

import (
	"context"
	"fmt"
	"log/slog"

	"hangoutsync/internal/cache"
	"hangoutsync/internal/codec"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/reconcile"
	"hangoutsync/internal/remote"
)

// Draft is a hangout as entered by the user, before the server assigns an id.
type Draft struct {
	Title        string
	Description  string
	Duration     domain.Duration
	Vibe         domain.Vibe
	Participants []string
	Location     *domain.Location
	Tags         []string
	Budget       float64
	IsOutdoor    bool
}

// Hangouts tracks the signed-in user's hangout references and caches full
// hangouts read on demand.
type Hangouts struct {
	deps    Deps
	uid     string
	logger  *slog.Logger
	refs    *reconcile.Reconciler[domain.HangoutReference]
	details *cache.Store[domain.Hangout]
}

func NewHangouts(deps Deps) (*Hangouts, error) {
	uid, err := deps.Identity.Require()
	if err != nil {
		return nil, err
	}
	logger := deps.logger().With("model", "hangouts")
	q := remote.Query{
		Collection: remote.UserHangoutsCollection(uid),
		OrderBy:    "createdAt",
		Descending: true,
	}
	return &Hangouts{
		deps:   deps,
		uid:    uid,
		logger: logger,
		refs: reconcile.New(deps.Source, q, codec.DecodeHangoutReference, cache.NewStore(HangoutReferenceSchema()),
			reconcile.Options{Name: "hangouts", ClearOnDetach: deps.ClearOnDetach, Logger: logger, OnError: deps.OnError}),
		details: cache.NewStore(HangoutSchema()),
	}, nil
}

func (h *Hangouts) Store() *cache.Store[domain.HangoutReference] { return h.refs.Store() }

func (h *Hangouts) Load(ctx context.Context) error {
	if err := h.refs.Refresh(ctx); err != nil {
		return err
	}
	return h.refs.Attach(subscriptionContext(ctx))
}

func (h *Hangouts) Detach() { h.refs.Detach() }

// List returns every reference, newest first with id as the tie-break.
func (h *Hangouts) List() []domain.HangoutReference { return h.refs.Store().SortedByCreation() }

func (h *Hangouts) WithParticipant(uid string) []domain.HangoutReference {
	return h.refs.Store().FilterByParticipant(uid)
}

func (h *Hangouts) Search(query string) []domain.HangoutReference {
	return h.refs.Store().FilterBySubstringOrAll(query, "title")
}

// Create asks the server to create the hangout and records the reference
// locally once it has an id. The owner is always a participant.
func (h *Hangouts) Create(ctx context.Context, d Draft) (domain.HangoutReference, error) {
	if _, err := h.deps.Identity.Require(); err != nil {
		return domain.HangoutReference{}, err
	}
	created := h.deps.now()
	participants := withOwner(h.uid, d.Participants)
	req := functions.CreateHangoutRequest{
		CreationDate:    codec.Millis(created),
		Duration:        d.Duration,
		Vibe:            d.Vibe,
		ParticipantUIDs: participants,
		Location:        d.Location,
		Title:           domain.StringPtr(d.Title),
		Description:     domain.StringPtr(d.Description),
		Tags:            domain.NormalizeTags(d.Tags),
		Budget:          d.Budget,
		IsOutdoor:       d.IsOutdoor,
		OwnerUID:        h.uid,
	}
	if err := req.Validate(); err != nil {
		return domain.HangoutReference{}, fmt.Errorf("%s: %w", functions.CreateHangout, err)
	}

	id, err := h.deps.Gateway.CreateHangout(ctx, req)
	if err != nil {
		h.logger.Error("hangouts: create failed", "err", err)
		return domain.HangoutReference{}, err
	}
	ref := domain.HangoutReference{
		HangoutID:       id,
		StoragePath:     domain.HangoutPath(id),
		CreatedAt:       created,
		Title:           d.Title,
		ParticipantUIDs: participants,
	}
	h.refs.ApplyRecord(ref)
	return ref, nil
}

// Get reads the full hangout behind a reference and caches it.
func (h *Hangouts) Get(ctx context.Context, id string) (domain.Hangout, error) {
	if _, err := h.deps.Identity.Require(); err != nil {
		return domain.Hangout{}, err
	}
	doc, err := h.deps.Source.Get(ctx, remote.HangoutsCollection, id)
	if err != nil {
		return domain.Hangout{}, err
	}
	hg, err := codec.DecodeHangout(doc.ID, doc.Data)
	if err != nil {
		codec.NoteSkip(h.logger, err)
		return domain.Hangout{}, err
	}
	h.details.Put(hg)
	return hg, nil
}

// Cached returns a previously read hangout without touching the network.
func (h *Hangouts) Cached(id string) (domain.Hangout, bool) { return h.details.Get(id) }

func withOwner(owner string, participants []string) []string {
	out := make([]string, 0, len(participants)+1)
	seen := map[string]bool{owner: true}
	out = append(out, owner)
	for _, p := range participants {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
