// Package reconcile merges live diff streams from a remote collection into
// a cache.Store. One generic Reconciler serves every tracked collection.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hangoutsync/internal/cache"
	"hangoutsync/internal/codec"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type State int

const (
	Unattached State = iota
	Attached
	Detached
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var errStreamClosed = errors.New("change stream closed")

type Options struct {
	// Name labels logs and metrics. Keep it low-cardinality ("friends", not a path).
	Name string
	// ClearOnDetach empties the store when Detach is called. The default keeps
	// the last known contents so a re-attach starts from them.
	ClearOnDetach bool
	Logger        *slog.Logger
	// OnError is called from the receive loop when the subscription fails.
	OnError func(error)
}

type Reconciler[T any] struct {
	source remote.Source
	query  remote.Query
	decode codec.DecodeFunc[T]
	store  *cache.Store[T]
	opts   Options
	logger *slog.Logger

	// applyMu makes the receive loop and direct writes take turns.
	applyMu sync.Mutex

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func New[T any](source remote.Source, q remote.Query, decode codec.DecodeFunc[T], store *cache.Store[T], opts Options) *Reconciler[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = q.Collection
	}
	return &Reconciler[T]{
		source: source,
		query:  q,
		decode: decode,
		store:  store,
		opts:   opts,
		logger: logger.With("collection", opts.Name),
	}
}

func (r *Reconciler[T]) Store() *cache.Store[T] { return r.store }

func (r *Reconciler[T]) Query() remote.Query { return r.query }

func (r *Reconciler[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that ended the most recent subscription, if any.
func (r *Reconciler[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Attach opens the live subscription and starts the receive loop. It is a
// no-op while already attached. The subscription runs until Detach or until
// ctx is cancelled.
func (r *Reconciler[T]) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Attached {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	events, err := r.source.Watch(subCtx, r.query)
	if err != nil {
		cancel()
		r.err = fmt.Errorf("%s: watch: %w: %w", r.opts.Name, domain.ErrSubscriptionFailed, err)
		subscriptionErrorsTotal.WithLabelValues(r.opts.Name).Inc()
		r.logger.Error("reconcile: attach failed", "err", err)
		return r.err
	}

	done := make(chan struct{})
	r.state = Attached
	r.cancel = cancel
	r.done = done
	r.err = nil
	attachedSubscriptions.WithLabelValues(r.opts.Name).Inc()
	r.logger.Debug("reconcile: attached", "query", r.query.String())

	go r.run(subCtx, events, done)
	return nil
}

// Detach cancels the subscription and waits for the receive loop to exit.
// It is idempotent and safe to call on a reconciler that never attached.
func (r *Reconciler[T]) Detach() {
	r.mu.Lock()
	wasAttached := r.state == Attached
	cancel, done := r.cancel, r.done
	r.state = Detached
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if wasAttached {
		attachedSubscriptions.WithLabelValues(r.opts.Name).Dec()
		cancel()
		<-done
		r.logger.Debug("reconcile: detached")
	}
	if r.opts.ClearOnDetach {
		r.applyMu.Lock()
		r.store.Clear()
		r.applyMu.Unlock()
	}
}

func (r *Reconciler[T]) run(ctx context.Context, events <-chan remote.Event, done chan struct{}) {
	defer close(done)

	failure := errStreamClosed
	for ev := range events {
		if ctx.Err() != nil {
			break
		}
		if ev.Err != nil {
			failure = ev.Err
			break
		}
		r.Apply(ev.Changes...)
	}
	if ctx.Err() != nil {
		failure = nil
	}
	r.finish(done, failure)
}

func (r *Reconciler[T]) finish(done chan struct{}, failure error) {
	r.mu.Lock()
	if r.done != done {
		// Detach already took this subscription down.
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.state = Detached
	r.cancel = nil
	r.done = nil
	attachedSubscriptions.WithLabelValues(r.opts.Name).Dec()

	var err error
	if failure != nil {
		err = fmt.Errorf("%s: %w: %w", r.opts.Name, domain.ErrSubscriptionFailed, failure)
		r.err = err
	}
	r.mu.Unlock()

	if err == nil {
		return
	}
	subscriptionErrorsTotal.WithLabelValues(r.opts.Name).Inc()
	r.logger.Error("reconcile: subscription failed", "err", err)
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
}

// Apply merges changes into the store in order. Added and modified upsert;
// removed deletes if present. A change whose document does not decode is
// skipped and the existing entry is kept.
func (r *Reconciler[T]) Apply(changes ...remote.Change) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	for _, ch := range changes {
		r.applyOne(ch)
	}
}

func (r *Reconciler[T]) applyOne(ch remote.Change) {
	switch ch.Kind {
	case remote.Removed:
		r.store.Remove(ch.Doc.ID)
	case remote.Added, remote.Modified:
		rec, err := r.decode(ch.Doc.ID, ch.Doc.Data)
		if err != nil {
			changesSkippedTotal.WithLabelValues(r.opts.Name).Inc()
			codec.NoteSkip(r.logger, err)
			return
		}
		key := ch.Doc.ID
		if key == "" {
			key = r.store.Schema().Key(rec)
		}
		r.store.Upsert(key, rec)
	default:
		r.logger.Warn("reconcile: unknown change kind", "kind", string(ch.Kind), "id", ch.Doc.ID)
		return
	}
	changesAppliedTotal.WithLabelValues(r.opts.Name, string(ch.Kind)).Inc()
}

// ApplyRecord upserts a locally built record, used for optimistic updates.
// The later listener echo for the same key lands on the same entry.
func (r *Reconciler[T]) ApplyRecord(rec T) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	r.store.Put(rec)
}

// RemoveKey deletes a key locally, used after a successful delete RPC.
func (r *Reconciler[T]) RemoveKey(key string) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	r.store.Remove(key)
}

// Refresh performs the one-shot bulk fetch and upserts every record that
// decodes. Entries missing from the result are kept.
func (r *Reconciler[T]) Refresh(ctx context.Context) error {
	docs, err := r.source.Fetch(ctx, r.query)
	if err != nil {
		return fmt.Errorf("%s: fetch: %w", r.opts.Name, err)
	}
	recs := codec.DecodeAll(docs, r.decode, r.logger)

	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	for _, rec := range recs {
		r.store.Put(rec)
	}
	return nil
}
