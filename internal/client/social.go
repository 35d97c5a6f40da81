package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hangoutsync/internal/cache"
	"hangoutsync/internal/codec"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/reconcile"
	"hangoutsync/internal/remote"
)

// Social tracks the signed-in user's friends and outgoing friend requests,
// plus the profiles needed to search them.
type Social struct {
	deps   Deps
	uid    string
	logger *slog.Logger

	friends  *reconcile.Reconciler[domain.FriendLink]
	requests *reconcile.Reconciler[domain.FriendRequest]

	// profiles holds users/{uid} for each friend; directory holds any
	// profile loaded for user search.
	profiles  *cache.Store[domain.UserRecord]
	directory *cache.Store[domain.UserRecord]
}

func NewSocial(deps Deps) (*Social, error) {
	uid, err := deps.Identity.Require()
	if err != nil {
		return nil, err
	}
	logger := deps.logger().With("model", "social")
	opts := func(name string) reconcile.Options {
		return reconcile.Options{Name: name, ClearOnDetach: deps.ClearOnDetach, Logger: logger, OnError: deps.OnError}
	}
	return &Social{
		deps:   deps,
		uid:    uid,
		logger: logger,
		friends: reconcile.New(deps.Source,
			remote.Query{Collection: remote.FriendsCollection(uid)},
			codec.DecodeFriendLink, cache.NewStore(FriendLinkSchema()), opts("friends")),
		requests: reconcile.New(deps.Source,
			remote.Query{Collection: remote.PendingRequestsCollection(uid)},
			codec.DecodeFriendRequest, cache.NewStore(FriendRequestSchema()), opts("friend_requests")),
		profiles:  cache.NewStore(UserSchema()),
		directory: cache.NewStore(UserSchema()),
	}, nil
}

func (s *Social) FriendsStore() *cache.Store[domain.FriendLink]     { return s.friends.Store() }
func (s *Social) RequestsStore() *cache.Store[domain.FriendRequest] { return s.requests.Store() }

// Load fetches both collections, resolves friend profiles and then attaches
// the live subscriptions.
func (s *Social) Load(ctx context.Context) error {
	if err := s.requests.Refresh(ctx); err != nil {
		return err
	}
	if err := s.friends.Refresh(ctx); err != nil {
		return err
	}
	if err := s.RefreshProfiles(ctx); err != nil {
		s.logger.Warn("social: profile refresh incomplete", "err", err)
	}
	live := subscriptionContext(ctx)
	if err := s.requests.Attach(live); err != nil {
		return err
	}
	if err := s.friends.Attach(live); err != nil {
		s.requests.Detach()
		return err
	}
	return nil
}

func (s *Social) Detach() {
	s.friends.Detach()
	s.requests.Detach()
}

// Friends returns friend links, newest first.
func (s *Social) Friends() []domain.FriendLink { return s.friends.Store().SortedByCreation() }

// Requests returns outgoing requests in every status, newest first.
func (s *Social) Requests() []domain.FriendRequest { return s.requests.Store().SortedByCreation() }

// RefreshProfiles loads users/{uid} for every friend whose profile is not
// cached yet. Missing or malformed profiles are skipped.
func (s *Social) RefreshProfiles(ctx context.Context) error {
	var errs []error
	for _, link := range s.friends.Store().All() {
		if _, ok := s.profiles.Get(link.FriendUID); ok {
			continue
		}
		u, err := s.fetchProfile(ctx, link.FriendUID)
		if err != nil {
			if !errors.Is(err, domain.ErrDecodeSkipped) && !errors.Is(err, domain.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		s.profiles.Put(u)
	}
	return errors.Join(errs...)
}

func (s *Social) fetchProfile(ctx context.Context, uid string) (domain.UserRecord, error) {
	doc, err := s.deps.Source.Get(ctx, remote.UsersCollection, uid)
	if err != nil {
		return domain.UserRecord{}, err
	}
	u, err := codec.DecodeUser(doc.ID, doc.Data)
	if err != nil {
		codec.NoteSkip(s.logger, err)
		return domain.UserRecord{}, err
	}
	return u, nil
}

// LoadDirectory fetches up to limit user profiles for SearchUsers.
func (s *Social) LoadDirectory(ctx context.Context, limit int) error {
	docs, err := s.deps.Source.Fetch(ctx, remote.Query{Collection: remote.UsersCollection, OrderBy: "username", Limit: limit})
	if err != nil {
		return fmt.Errorf("social: load directory: %w", err)
	}
	for _, u := range codec.DecodeAll(docs, codec.DecodeUser, s.logger) {
		if u.UID == s.uid {
			continue
		}
		s.directory.Put(u)
	}
	return nil
}

// SearchFriends matches friend profiles by name or email. A blank query
// lists every friend.
func (s *Social) SearchFriends(query string) []domain.UserRecord {
	return s.profiles.FilterBySubstringOrAll(query)
}

// SearchUsers matches directory profiles. A blank query matches nobody.
func (s *Social) SearchUsers(query string) []domain.UserRecord {
	return s.directory.FilterBySubstring(query, "username", "fullName")
}

// SendFriendRequest asks toUID to become a friend. An outstanding local
// request to the same target is refused before anything is sent.
func (s *Social) SendFriendRequest(ctx context.Context, toUID, fromUsername string, fromAvatarURLs []string) (domain.FriendRequest, error) {
	if _, err := s.deps.Identity.Require(); err != nil {
		return domain.FriendRequest{}, err
	}
	if existing, ok := s.requests.Store().Get(toUID); ok && existing.Status == domain.RequestPending {
		return domain.FriendRequest{}, fmt.Errorf("friend request to %s: %w", toUID, domain.ErrAlreadyExists)
	}
	if _, ok := s.friends.Store().Get(toUID); ok {
		return domain.FriendRequest{}, fmt.Errorf("already friends with %s: %w", toUID, domain.ErrAlreadyExists)
	}

	notificationID, err := s.deps.Gateway.SendFriendRequest(ctx, functions.SendFriendRequestRequest{
		FromUID:        s.uid,
		ToUID:          toUID,
		FromUsername:   fromUsername,
		FromAvatarURLs: fromAvatarURLs,
	})
	if err != nil {
		s.logger.Error("social: send friend request failed", "to", toUID, "err", err)
		return domain.FriendRequest{}, err
	}

	req := domain.FriendRequest{
		TargetUID:            toUID,
		RequestedAt:          s.deps.now(),
		RemoteNotificationID: domain.StringPtr(notificationID),
		Status:               domain.RequestPending,
	}
	s.requests.ApplyRecord(req)
	return req, nil
}

// UnsendFriendRequest withdraws the outstanding request to toUID.
func (s *Social) UnsendFriendRequest(ctx context.Context, toUID string) error {
	if _, err := s.deps.Identity.Require(); err != nil {
		return err
	}
	req, ok := s.requests.Store().Get(toUID)
	if !ok {
		return fmt.Errorf("friend request to %s: %w", toUID, domain.ErrNotFound)
	}
	if err := s.deps.Gateway.UnsendFriendRequest(ctx, functions.UnsendFriendRequestRequest{
		ToUID:          toUID,
		NotificationID: domain.StringValue(req.RemoteNotificationID),
	}); err != nil {
		s.logger.Error("social: unsend friend request failed", "to", toUID, "err", err)
		return err
	}
	s.requests.RemoveKey(toUID)
	return nil
}

// AcceptFriendRequest accepts the request fromUID sent to the signed-in user.
func (s *Social) AcceptFriendRequest(ctx context.Context, fromUID string) error {
	if _, err := s.deps.Identity.Require(); err != nil {
		return err
	}
	if err := s.deps.Gateway.RespondToFriendRequest(ctx, functions.RespondToFriendRequestRequest{
		FromUID: fromUID,
		ToUID:   s.uid,
	}); err != nil {
		s.logger.Error("social: accept friend request failed", "from", fromUID, "err", err)
		return err
	}
	s.friends.ApplyRecord(domain.FriendLink{FriendUID: fromUID, EstablishedAt: s.deps.now()})
	return nil
}

// RejectFriendRequest marks the requester's pending record rejected with a
// direct document write, then marks the notification rejected.
func (s *Social) RejectFriendRequest(ctx context.Context, fromUID, notificationID string) error {
	if _, err := s.deps.Identity.Require(); err != nil {
		return err
	}
	if err := domain.RequireFields(map[string]string{"fromUid": fromUID}); err != nil {
		return err
	}
	if s.deps.Writer == nil {
		return fmt.Errorf("social: reject: no document writer configured")
	}
	if err := s.deps.Writer.Merge(ctx, remote.PendingRequestsCollection(fromUID), s.uid,
		map[string]any{"status": string(domain.RequestRejected)}); err != nil {
		s.logger.Error("social: reject friend request failed", "from", fromUID, "err", err)
		return &domain.RemoteError{Op: "rejectFriendRequest", Code: "write_failed", Message: err.Error(), Err: err}
	}
	if notificationID == "" {
		return nil
	}
	return s.deps.Gateway.UpdateNotificationStatus(ctx, functions.UpdateNotificationStatusRequest{
		ToUID:          s.uid,
		NotificationID: notificationID,
		Status:         string(domain.NotificationRejected),
	})
}
