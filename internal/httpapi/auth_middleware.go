package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"hangoutsync/internal/auth"
	"hangoutsync/internal/domain"
)

type authCtxKey int

const authUIDKey authCtxKey = iota

// requireAuth resolves the bearer session token to a uid. The uid is also
// stored on the request's logging context via uidHolder when present.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		uid, err := a.accounts.Authenticate(token)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if h, ok := r.Context().Value(uidHolderKey).(*uidHolder); ok {
			h.uid = uid
		}
		ctx := context.WithValue(r.Context(), authUIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// uidHolder lets the outer request logger see the uid resolved further in.
type uidHolder struct{ uid string }

const uidHolderKey authCtxKey = authUIDKey + 1

func withUIDHolder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uidHolderKey, &uidHolder{})))
	})
}

func CurrentUID(ctx context.Context) (string, bool) {
	if uid, ok := ctx.Value(authUIDKey).(string); ok && uid != "" {
		return uid, true
	}
	if h, ok := ctx.Value(uidHolderKey).(*uidHolder); ok && h.uid != "" {
		return h.uid, true
	}
	return "", false
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
