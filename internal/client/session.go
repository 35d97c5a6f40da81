package client

import (
	"context"
	"errors"
	"sync"
)

// Session bundles the models for one signed-in user. Build a new one after
// every sign-in; Close is the sign-out teardown.
type Session struct {
	Identity *Identity
	Social   *Social
	Inbox    *Inbox
	Hangouts *Hangouts

	closeOnce sync.Once
}

type SessionOptions struct {
	PageSize int
}

func NewSession(deps Deps, opts SessionOptions) (*Session, error) {
	if _, err := deps.Identity.Require(); err != nil {
		return nil, err
	}
	social, err := NewSocial(deps)
	if err != nil {
		return nil, err
	}
	inbox, err := NewInbox(deps, opts.PageSize)
	if err != nil {
		return nil, err
	}
	hangouts, err := NewHangouts(deps)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: deps.Identity, Social: social, Inbox: inbox, Hangouts: hangouts}, nil
}

// Load loads every model. A failing model does not stop the others.
func (s *Session) Load(ctx context.Context) error {
	return errors.Join(
		s.Social.Load(ctx),
		s.Inbox.Load(ctx),
		s.Hangouts.Load(ctx),
	)
}

// Close detaches every subscription. It is safe to call more than once and
// on a session that never loaded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Social.Detach()
		s.Inbox.Detach()
		s.Hangouts.Detach()
	})
}

// SignOut closes the session and clears the identity.
func (s *Session) SignOut() {
	s.Close()
	s.Identity.SignOut()
}
