package client

import (
	"time"

	"hangoutsync/internal/cache"
	"hangoutsync/internal/domain"
)

func UserSchema() cache.Schema[domain.UserRecord] {
	return cache.Schema[domain.UserRecord]{
		Key: func(u domain.UserRecord) string { return u.UID },
		Text: map[string]func(domain.UserRecord) string{
			"username": func(u domain.UserRecord) string { return domain.StringValue(u.Username) },
			"fullName": func(u domain.UserRecord) string { return domain.StringValue(u.FullName) },
			"email":    func(u domain.UserRecord) string { return domain.StringValue(u.Email) },
		},
	}
}

func FriendLinkSchema() cache.Schema[domain.FriendLink] {
	return cache.Schema[domain.FriendLink]{
		Key:       func(f domain.FriendLink) string { return f.FriendUID },
		CreatedAt: func(f domain.FriendLink) time.Time { return f.EstablishedAt },
	}
}

func FriendRequestSchema() cache.Schema[domain.FriendRequest] {
	return cache.Schema[domain.FriendRequest]{
		Key:       func(r domain.FriendRequest) string { return r.TargetUID },
		CreatedAt: func(r domain.FriendRequest) time.Time { return r.RequestedAt },
	}
}

func NotificationSchema() cache.Schema[domain.Notification] {
	return cache.Schema[domain.Notification]{
		Key:          func(n domain.Notification) string { return n.ID },
		CreatedAt:    func(n domain.Notification) time.Time { return n.CreatedAt },
		Participants: func(n domain.Notification) []string { return []string{n.FromUID, n.ToUID} },
		Text: map[string]func(domain.Notification) string{
			"message": func(n domain.Notification) string { return domain.StringValue(n.Message) },
		},
	}
}

func HangoutReferenceSchema() cache.Schema[domain.HangoutReference] {
	return cache.Schema[domain.HangoutReference]{
		Key:          func(h domain.HangoutReference) string { return h.HangoutID },
		CreatedAt:    func(h domain.HangoutReference) time.Time { return h.CreatedAt },
		Participants: func(h domain.HangoutReference) []string { return h.ParticipantUIDs },
		Text: map[string]func(domain.HangoutReference) string{
			"title": func(h domain.HangoutReference) string { return h.Title },
		},
	}
}

func HangoutSchema() cache.Schema[domain.Hangout] {
	return cache.Schema[domain.Hangout]{
		Key:          func(h domain.Hangout) string { return h.HangoutID },
		CreatedAt:    func(h domain.Hangout) time.Time { return h.CreatedAt },
		Participants: func(h domain.Hangout) []string { return h.ParticipantUIDs },
		Text: map[string]func(domain.Hangout) string{
			"title":       func(h domain.Hangout) string { return domain.StringValue(h.Title) },
			"description": func(h domain.Hangout) string { return domain.StringValue(h.Description) },
		},
	}
}
