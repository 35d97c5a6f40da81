package service

import (
	"context"
	"time"

	"hangoutsync/internal/codec"
	"hangoutsync/internal/docstore"
	"hangoutsync/internal/domain"
	"hangoutsync/internal/functions"
	"hangoutsync/internal/remote"
)

type HangoutService struct {
	Base
	Notifier Notifier
}

// Create stores the hangout, a reference under every participant and an
// invitation in every other participant's inbox, in one commit.
func (s *HangoutService) Create(ctx context.Context, caller string, req functions.CreateHangoutRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := requireCaller(caller, req.OwnerUID, "ownerUid"); err != nil {
		return "", err
	}
	participants := ownerFirst(req.OwnerUID, req.ParticipantUIDs)
	owner, err := s.requireUser(ctx, req.OwnerUID)
	if err != nil {
		return "", err
	}
	for _, uid := range participants[1:] {
		if _, err := s.requireUser(ctx, uid); err != nil {
			return "", err
		}
	}

	id := s.newID()
	h := domain.Hangout{
		HangoutID:       id,
		CreatedAt:       time.UnixMilli(req.CreationDate).UTC(),
		Duration:        req.Duration,
		Vibe:            req.Vibe,
		Status:          domain.HangoutPending,
		ParticipantUIDs: participants,
		Location:        req.Location,
		Title:           req.Title,
		Description:     req.Description,
		Tags:            domain.NormalizeTags(req.Tags),
		Budget:          req.Budget,
		IsOutdoor:       req.IsOutdoor,
	}
	ref := codec.EncodeHangoutReference(h.Reference())

	writes := []docstore.Write{docstore.Set(remote.HangoutsCollection, id, codec.EncodeHangout(h))}
	invites := make(map[string]string, len(participants)-1)
	now := s.now()
	for _, uid := range participants {
		writes = append(writes, docstore.Set(remote.UserHangoutsCollection(uid), id, ref))
		if uid == req.OwnerUID {
			continue
		}
		nid := s.newID()
		invites[uid] = nid
		note := domain.Notification{
			ID:        nid,
			FromUID:   req.OwnerUID,
			ToUID:     uid,
			Kind:      domain.KindHangoutRequest,
			Message:   domain.StringPtr(inviteMessage(owner, h)),
			Status:    domain.NotificationPending,
			CreatedAt: now,
		}
		if owner.PhotoURL != nil {
			note.FromAvatarURLs = []string{*owner.PhotoURL}
		}
		writes = append(writes, docstore.Set(remote.NotificationsCollection(uid), nid, codec.EncodeNotification(note)))
	}
	if err := s.Docs.Commit(ctx, writes); err != nil {
		return "", err
	}

	s.logger().Info("hangouts: created", "hangout_id", id, "owner", req.OwnerUID, "participants", len(participants))
	if s.Notifier != nil {
		for uid, nid := range invites {
			s.Notifier.Notify(ctx, uid, Push{
				Kind:           domain.KindHangoutRequest,
				NotificationID: nid,
				FromUID:        req.OwnerUID,
				Title:          "Hangout invitation",
				Body:           inviteMessage(owner, h),
			})
		}
	}
	return id, nil
}

func inviteMessage(owner domain.UserRecord, h domain.Hangout) string {
	who := owner.DisplayName()
	if who == "" {
		who = "A friend"
	}
	if title := domain.StringValue(h.Title); title != "" {
		return who + " invited you to " + title
	}
	return who + " invited you to a hangout"
}

func ownerFirst(owner string, participants []string) []string {
	out := []string{owner}
	seen := map[string]bool{owner: true}
	for _, p := range participants {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
