// Package codec maps loosely typed wire documents to domain records.
// Failures are isolated per document and never abort a batch.
package codec

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

var decodeSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hangoutsync",
		Subsystem: "codec",
		Name:      "decode_skipped_total",
		Help:      "Documents dropped because they could not be decoded.",
	},
	[]string{"record"},
)

type DecodeFunc[T any] func(id string, data map[string]any) (T, error)

// SkipError describes one document that failed to decode. It matches both
// domain.ErrDecodeSkipped and the underlying cause under errors.Is.
type SkipError struct {
	Record string
	ID     string
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("decode %s %q: %v", e.Record, e.ID, e.Err)
}

func (e *SkipError) Unwrap() []error { return []error{domain.ErrDecodeSkipped, e.Err} }

func skip(record, id string, err error) error {
	return &SkipError{Record: record, ID: id, Err: err}
}

// DecodeAll decodes every document it can. Malformed documents are logged,
// counted and left out.
func DecodeAll[T any](docs []remote.Document, decode DecodeFunc[T], logger *slog.Logger) []T {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		rec, err := decode(d.ID, d.Data)
		if err != nil {
			NoteSkip(logger, err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// NoteSkip logs and counts a decode failure.
func NoteSkip(logger *slog.Logger, err error) {
	record := "unknown"
	var se *SkipError
	if errors.As(err, &se) {
		record = se.Record
	}
	decodeSkippedTotal.WithLabelValues(record).Inc()
	logger.Warn("codec: document skipped", "record", record, "err", err)
}

func decodeInto(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: timestampHook(),
		Result:     out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

func requireKeys(data map[string]any, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if v, ok := data[k]; !ok || v == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields %v", missing)
	}
	return nil
}

func DecodeUser(id string, data map[string]any) (domain.UserRecord, error) {
	var u domain.UserRecord
	if err := decodeInto(data, &u); err != nil {
		return domain.UserRecord{}, skip("user", id, err)
	}
	if id != "" {
		u.UID = id
	}
	if u.UID == "" {
		return domain.UserRecord{}, skip("user", id, errors.New("missing uid"))
	}
	return u, nil
}

func DecodeFriendLink(id string, data map[string]any) (domain.FriendLink, error) {
	if err := requireKeys(data, "establishedAt"); err != nil {
		return domain.FriendLink{}, skip("friend", id, err)
	}
	var f domain.FriendLink
	if err := decodeInto(data, &f); err != nil {
		return domain.FriendLink{}, skip("friend", id, err)
	}
	if id != "" {
		f.FriendUID = id
	}
	if f.FriendUID == "" {
		return domain.FriendLink{}, skip("friend", id, errors.New("missing friendUid"))
	}
	return f, nil
}

func DecodeFriendRequest(id string, data map[string]any) (domain.FriendRequest, error) {
	if err := requireKeys(data, "requestedAt", "status"); err != nil {
		return domain.FriendRequest{}, skip("friend_request", id, err)
	}
	var r domain.FriendRequest
	if err := decodeInto(data, &r); err != nil {
		return domain.FriendRequest{}, skip("friend_request", id, err)
	}
	if id != "" {
		r.TargetUID = id
	}
	if r.TargetUID == "" {
		return domain.FriendRequest{}, skip("friend_request", id, errors.New("missing targetUid"))
	}
	if !r.Status.Valid() {
		return domain.FriendRequest{}, skip("friend_request", id, fmt.Errorf("unknown status %q", r.Status))
	}
	return r, nil
}

func DecodeNotification(id string, data map[string]any) (domain.Notification, error) {
	if err := requireKeys(data, "fromUid", "toUid", "kind", "status", "createdAt"); err != nil {
		return domain.Notification{}, skip("notification", id, err)
	}
	var n domain.Notification
	if err := decodeInto(data, &n); err != nil {
		return domain.Notification{}, skip("notification", id, err)
	}
	if id != "" {
		n.ID = id
	}
	if !n.Kind.Valid() {
		return domain.Notification{}, skip("notification", id, fmt.Errorf("unknown kind %q", n.Kind))
	}
	if !n.Status.Valid() {
		return domain.Notification{}, skip("notification", id, fmt.Errorf("unknown status %q", n.Status))
	}
	return n, nil
}

func DecodeHangoutReference(id string, data map[string]any) (domain.HangoutReference, error) {
	if err := requireKeys(data, "createdAt", "participantUids"); err != nil {
		return domain.HangoutReference{}, skip("hangout_reference", id, err)
	}
	var h domain.HangoutReference
	if err := decodeInto(data, &h); err != nil {
		return domain.HangoutReference{}, skip("hangout_reference", id, err)
	}
	if id != "" {
		h.HangoutID = id
	}
	if h.HangoutID == "" {
		return domain.HangoutReference{}, skip("hangout_reference", id, errors.New("missing hangoutId"))
	}
	if h.StoragePath == "" {
		h.StoragePath = domain.HangoutPath(h.HangoutID)
	}
	return h, nil
}

func DecodeHangout(id string, data map[string]any) (domain.Hangout, error) {
	if err := requireKeys(data, "createdAt", "duration", "vibe", "status", "participantUids", "budget", "isOutdoor"); err != nil {
		return domain.Hangout{}, skip("hangout", id, err)
	}
	var h domain.Hangout
	if err := decodeInto(data, &h); err != nil {
		return domain.Hangout{}, skip("hangout", id, err)
	}
	if id != "" {
		h.HangoutID = id
	}
	switch {
	case h.HangoutID == "":
		return domain.Hangout{}, skip("hangout", id, errors.New("missing hangoutId"))
	case !h.Duration.Valid():
		return domain.Hangout{}, skip("hangout", id, fmt.Errorf("unknown duration %q", h.Duration))
	case !h.Vibe.Valid():
		return domain.Hangout{}, skip("hangout", id, fmt.Errorf("unknown vibe %q", h.Vibe))
	case !h.Status.Valid():
		return domain.Hangout{}, skip("hangout", id, fmt.Errorf("unknown status %q", h.Status))
	case h.Budget < 0:
		return domain.Hangout{}, skip("hangout", id, fmt.Errorf("negative budget %v", h.Budget))
	}
	h.Tags = domain.NormalizeTags(h.Tags)
	return h, nil
}
