// Package client holds the per-feature models that keep local caches in
// step with the remote store and issue mutations through the gateway.
package client

import (
	"sync"

	"hangoutsync/internal/domain"
)

// Identity is the signed-in principal. The zero value is signed out.
type Identity struct {
	mu    sync.RWMutex
	uid   string
	token string
}

func NewIdentity(uid, token string) *Identity {
	return &Identity{uid: uid, token: token}
}

func (i *Identity) SignIn(uid, token string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.uid, i.token = uid, token
}

func (i *Identity) SignOut() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.uid, i.token = "", ""
}

func (i *Identity) UID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.uid
}

// Token is shaped to plug into the gateway and wsfeed token options.
func (i *Identity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

// Require returns the signed-in uid or ErrAuthenticationUnavailable.
func (i *Identity) Require() (string, error) {
	if i == nil {
		return "", domain.ErrAuthenticationUnavailable
	}
	uid := i.UID()
	if uid == "" {
		return "", domain.ErrAuthenticationUnavailable
	}
	return uid, nil
}
