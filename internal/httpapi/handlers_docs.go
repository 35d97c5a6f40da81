package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/remote"
)

type documentsResponse struct {
	Documents []remote.Document `json:"documents"`
}

type patchRequest struct {
	Fields map[string]any `json:"fields"`
}

var profileFields = map[string]bool{"username": true, "fullName": true, "photoURL": true}

// canQuery reports whether uid may list or watch collection. Users read
// their own subtree and the profile directory. Hangouts are read one at a
// time.
func canQuery(uid, collection string) error {
	if collection == remote.UsersCollection {
		return nil
	}
	if owner, ok := remote.OwnerOf(collection); ok && owner == uid {
		return nil
	}
	return fmt.Errorf("read %s: %w", collection, domain.ErrForbidden)
}

func canRead(uid, collection string, doc remote.Document) error {
	if collection == remote.HangoutsCollection {
		if participates(doc.Data, uid) {
			return nil
		}
		return fmt.Errorf("read hangout %s: %w", doc.ID, domain.ErrForbidden)
	}
	return canQuery(uid, collection)
}

func participates(data map[string]any, uid string) bool {
	switch list := data["participantUids"].(type) {
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && s == uid {
				return true
			}
		}
	case []string:
		for _, s := range list {
			if s == uid {
				return true
			}
		}
	}
	return false
}

// canPatch allows the two direct writes clients make: a target rejecting
// the pending record addressed to them, and users editing their own
// profile fields.
func canPatch(uid, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return domain.NewValidationError(map[string]string{"fields": "required"})
	}
	if owner, ok := remote.OwnerOf(collection); ok && collection == remote.PendingRequestsCollection(owner) && id == uid {
		if len(fields) != 1 || fields["status"] != string(domain.RequestRejected) {
			return domain.NewValidationError(map[string]string{"status": "only rejected may be written"})
		}
		return nil
	}
	if collection == remote.UsersCollection && id == uid {
		for k, v := range fields {
			if !profileFields[k] {
				return domain.NewValidationError(map[string]string{k: "not writable"})
			}
			if _, ok := v.(string); !ok && v != nil {
				return domain.NewValidationError(map[string]string{k: "must be a string"})
			}
		}
		return nil
	}
	return fmt.Errorf("write %s/%s: %w", collection, id, domain.ErrForbidden)
}

func (a *api) handleDocsGet(w http.ResponseWriter, r *http.Request) {
	uid, _ := CurrentUID(r.Context())
	path := strings.Trim(r.PathValue("path"), "/")

	if remote.ValidCollection(path) {
		v := r.URL.Query()
		v.Set("collection", path)
		q, err := remote.ParseQuery(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "bad_query", err.Error())
			return
		}
		if err := canQuery(uid, q.Collection); err != nil {
			WriteDomainError(w, err)
			return
		}
		docs, err := a.docs.Query(r.Context(), q)
		if err != nil {
			a.logger.Error("docs: query failed", "query", q.String(), "err", err)
			WriteDomainError(w, err)
			return
		}
		if docs == nil {
			docs = []remote.Document{}
		}
		WriteJSON(w, http.StatusOK, documentsResponse{Documents: docs})
		return
	}

	collection, id, err := remote.SplitDocPath(path)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if collection != remote.HangoutsCollection {
		if err := canQuery(uid, collection); err != nil {
			WriteDomainError(w, err)
			return
		}
	}
	doc, err := a.docs.Get(r.Context(), collection, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := canRead(uid, collection, doc); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (a *api) handleDocsPatch(w http.ResponseWriter, r *http.Request) {
	uid, _ := CurrentUID(r.Context())
	collection, id, err := remote.SplitDocPath(r.PathValue("path"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if err := canPatch(uid, collection, id, req.Fields); err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := a.docs.Commit(r.Context(), []docstore.Write{docstore.Update(collection, id, req.Fields)}); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
