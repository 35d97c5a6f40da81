package docstore

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hangoutsync/internal/remote"
)

var (
	hubSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hangoutsync",
		Subsystem: "docstore",
		Name:      "hub_subscribers",
		Help:      "Change feed subscribers currently registered.",
	})
	hubPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hangoutsync",
		Subsystem: "docstore",
		Name:      "hub_changes_published_total",
		Help:      "Document changes fanned out to subscribers.",
	}, []string{"kind"})
	hubDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hangoutsync",
		Subsystem: "docstore",
		Name:      "hub_subscribers_dropped_total",
		Help:      "Subscribers disconnected because their buffer was full.",
	})
)

// Subscription receives change batches for one collection. C is closed when
// the subscription is closed or when the hub drops it for falling behind.
type Subscription struct {
	C <-chan []remote.Change

	hub        *Hub
	collection string
	ch         chan []remote.Change
	closed     bool
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() { s.hub.remove(s) }

// Hub fans committed changes out to per-collection subscribers. Publish
// never blocks: a subscriber whose buffer is full is dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Subscribe(collection string) *Subscription {
	ch := make(chan []remote.Change, h.buffer)
	s := &Subscription{C: ch, hub: h, collection: collection, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[collection]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[collection] = set
	}
	set[s] = struct{}{}
	hubSubscribers.Inc()
	return s
}

func (h *Hub) Publish(collection string, changes []remote.Change) {
	if len(changes) == 0 {
		return
	}
	for _, c := range changes {
		hubPublishedTotal.WithLabelValues(string(c.Kind)).Inc()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[collection] {
		select {
		case s.ch <- changes:
		default:
			h.logger.Warn("docstore: dropping slow subscriber", "collection", collection)
			hubDroppedTotal.Inc()
			h.removeLocked(s)
		}
	}
}

// PublishBatch publishes changes grouped by collection, in the order the
// collections first appear in batch.
func (h *Hub) PublishBatch(batch []Changed) {
	order := make([]string, 0, len(batch))
	grouped := make(map[string][]remote.Change)
	for _, c := range batch {
		if _, ok := grouped[c.Collection]; !ok {
			order = append(order, c.Collection)
		}
		grouped[c.Collection] = append(grouped[c.Collection], c.Change)
	}
	for _, col := range order {
		h.Publish(col, grouped[col])
	}
}

// Subscribers returns the number of live subscriptions on collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	hubSubscribers.Dec()
	if set, ok := h.subs[s.collection]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.collection)
		}
	}
}

// Changed is one committed change tagged with its collection.
type Changed struct {
	Collection string
	Change     remote.Change
}
