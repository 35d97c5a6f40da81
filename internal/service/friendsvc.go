package service

import (
	"context"
	"fmt"

	"hangoutsync/internal/codec"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/remote"
)

type Notifier interface {
	Notify(ctx context.Context, uid string, p Push)
}

// FriendsService owns the friend-request lifecycle. The requester's record
// lives at users/{from}/pendingFriendRequests/{to}; the target's inbox entry
// at users/{to}/notifications/{id}.
type FriendsService struct {
	Base
	Notifier Notifier
}

func (s *FriendsService) notify(ctx context.Context, uid string, p Push) {
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, uid, p)
	}
}

func (s *FriendsService) SendRequest(ctx context.Context, caller string, req functions.SendFriendRequestRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := requireCaller(caller, req.FromUID, "fromUid"); err != nil {
		return "", err
	}
	if req.FromUID == req.ToUID {
		return "", domain.NewValidationError(map[string]string{"toUid": "cannot friend yourself"})
	}
	if _, err := s.requireUser(ctx, req.ToUID); err != nil {
		return "", err
	}

	friend, err := s.lookup(ctx, remote.FriendsCollection(req.FromUID), req.ToUID)
	if err != nil {
		return "", err
	}
	if friend != nil {
		return "", fmt.Errorf("already friends with %s: %w", req.ToUID, domain.ErrAlreadyExists)
	}
	pending, err := s.lookup(ctx, remote.PendingRequestsCollection(req.FromUID), req.ToUID)
	if err != nil {
		return "", err
	}
	if pending != nil && pending["status"] == string(domain.RequestPending) {
		return "", fmt.Errorf("request to %s already pending: %w", req.ToUID, domain.ErrAlreadyExists)
	}

	now := s.now()
	id := s.newID()
	note := domain.Notification{
		ID:             id,
		FromUID:        req.FromUID,
		FromAvatarURLs: req.FromAvatarURLs,
		ToUID:          req.ToUID,
		Kind:           domain.KindFriendRequest,
		Message:        domain.StringPtr(req.FromUsername + " wants to be your friend"),
		Status:         domain.NotificationPending,
		CreatedAt:      now,
	}
	record := domain.FriendRequest{
		TargetUID:            req.ToUID,
		RequestedAt:          now,
		RemoteNotificationID: &id,
		Status:               domain.RequestPending,
	}
	if err := s.Docs.Commit(ctx, []docstore.Write{
		docstore.Set(remote.NotificationsCollection(req.ToUID), id, codec.EncodeNotification(note)),
		docstore.Set(remote.PendingRequestsCollection(req.FromUID), req.ToUID, codec.EncodeFriendRequest(record)),
	}); err != nil {
		return "", err
	}

	s.logger().Info("friends: request sent", "from", req.FromUID, "to", req.ToUID, "notification_id", id)
	s.notify(ctx, req.ToUID, friendRequestPush(id, req.FromUID, req.FromUsername))
	return id, nil
}

// UnsendRequest withdraws the caller's request to req.ToUID and removes the
// target's inbox entry.
func (s *FriendsService) UnsendRequest(ctx context.Context, caller string, req functions.UnsendFriendRequestRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if caller == "" {
		return domain.ErrUnauthorized
	}
	pending, err := s.lookup(ctx, remote.PendingRequestsCollection(caller), req.ToUID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("request to %s: %w", req.ToUID, domain.ErrNotFound)
	}
	// Without a recorded notification id the inbox entry to delete cannot be
	// confirmed as this request's, so nothing is removed.
	if nid, _ := pending["remoteNotificationId"].(string); nid == "" || nid != req.NotificationID {
		return domain.NewValidationError(map[string]string{"notificationId": "does not match the pending request"})
	}
	return s.Docs.Commit(ctx, []docstore.Write{
		docstore.Delete(remote.PendingRequestsCollection(caller), req.ToUID),
		docstore.Delete(remote.NotificationsCollection(req.ToUID), req.NotificationID),
	})
}

// Respond accepts the request FromUID sent to the caller: both users gain a
// friend link, and the requester's record and the inbox entry are marked
// accepted.
func (s *FriendsService) Respond(ctx context.Context, caller string, req functions.RespondToFriendRequestRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := requireCaller(caller, req.ToUID, "toUid"); err != nil {
		return err
	}
	data, err := s.lookup(ctx, remote.PendingRequestsCollection(req.FromUID), req.ToUID)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("request from %s: %w", req.FromUID, domain.ErrNotFound)
	}
	pending, err := codec.DecodeFriendRequest(req.ToUID, data)
	if err != nil {
		return err
	}
	if pending.Status != domain.RequestPending {
		return domain.NewValidationError(map[string]string{"status": "request is " + string(pending.Status)})
	}

	now := s.now()
	writes := []docstore.Write{
		docstore.Set(remote.FriendsCollection(req.ToUID), req.FromUID, codec.EncodeFriendLink(domain.FriendLink{FriendUID: req.FromUID, EstablishedAt: now})),
		docstore.Set(remote.FriendsCollection(req.FromUID), req.ToUID, codec.EncodeFriendLink(domain.FriendLink{FriendUID: req.ToUID, EstablishedAt: now})),
		docstore.Update(remote.PendingRequestsCollection(req.FromUID), req.ToUID, map[string]any{"status": string(domain.RequestAccepted)}),
	}
	if nid := domain.StringValue(pending.RemoteNotificationID); nid != "" {
		note, err := s.lookup(ctx, remote.NotificationsCollection(req.ToUID), nid)
		if err != nil {
			return err
		}
		if note != nil {
			writes = append(writes, docstore.Update(remote.NotificationsCollection(req.ToUID), nid, map[string]any{"status": string(domain.NotificationAccepted)}))
		}
	}
	if err := s.Docs.Commit(ctx, writes); err != nil {
		return err
	}

	s.logger().Info("friends: request accepted", "from", req.FromUID, "to", req.ToUID)
	body := "Your friend request was accepted."
	if u, err := s.requireUser(ctx, req.ToUID); err == nil && u.DisplayName() != "" {
		body = u.DisplayName() + " accepted your friend request."
	}
	s.notify(ctx, req.FromUID, Push{Kind: domain.KindFriendRequest, FromUID: req.ToUID, Title: "Friend request accepted", Body: body})
	return nil
}
