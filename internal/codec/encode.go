package codec

import (
	"time"

	"hangoutsync/internal/domain"
)

func setString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func setTime(m map[string]any, key string, t *time.Time) {
	if t != nil {
		m[key] = Millis(*t)
	}
}

func stringsAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func EncodeUser(u domain.UserRecord) map[string]any {
	m := map[string]any{"uid": u.UID}
	setString(m, "email", u.Email)
	setString(m, "photoURL", u.PhotoURL)
	setString(m, "username", u.Username)
	setString(m, "fullName", u.FullName)
	return m
}

func EncodeFriendLink(f domain.FriendLink) map[string]any {
	return map[string]any{
		"friendUid":     f.FriendUID,
		"establishedAt": Millis(f.EstablishedAt),
	}
}

func EncodeFriendRequest(r domain.FriendRequest) map[string]any {
	m := map[string]any{
		"targetUid":   r.TargetUID,
		"requestedAt": Millis(r.RequestedAt),
		"status":      string(r.Status),
	}
	setString(m, "remoteNotificationId", r.RemoteNotificationID)
	return m
}

func EncodeNotification(n domain.Notification) map[string]any {
	m := map[string]any{
		"fromUid":   n.FromUID,
		"toUid":     n.ToUID,
		"kind":      string(n.Kind),
		"status":    string(n.Status),
		"createdAt": Millis(n.CreatedAt),
	}
	if n.ID != "" {
		m["id"] = n.ID
	}
	if len(n.FromAvatarURLs) > 0 {
		m["fromAvatarUrls"] = stringsAny(n.FromAvatarURLs)
	}
	setString(m, "message", n.Message)
	return m
}

func EncodeHangoutReference(h domain.HangoutReference) map[string]any {
	return map[string]any{
		"hangoutId":       h.HangoutID,
		"storagePath":     h.StoragePath,
		"createdAt":       Millis(h.CreatedAt),
		"title":           h.Title,
		"participantUids": stringsAny(h.ParticipantUIDs),
	}
}

func EncodeHangout(h domain.Hangout) map[string]any {
	m := map[string]any{
		"hangoutId":       h.HangoutID,
		"createdAt":       Millis(h.CreatedAt),
		"duration":        string(h.Duration),
		"vibe":            string(h.Vibe),
		"status":          string(h.Status),
		"participantUids": stringsAny(h.ParticipantUIDs),
		"budget":          h.Budget,
		"isOutdoor":       h.IsOutdoor,
	}
	setTime(m, "startAt", h.StartAt)
	setTime(m, "endAt", h.EndAt)
	setString(m, "title", h.Title)
	setString(m, "description", h.Description)
	if h.Location != nil {
		loc := map[string]any{"name": h.Location.Name}
		if h.Location.Lat != nil {
			loc["lat"] = *h.Location.Lat
		}
		if h.Location.Lon != nil {
			loc["lon"] = *h.Location.Lon
		}
		m["location"] = loc
	}
	if tags := domain.NormalizeTags(h.Tags); len(tags) > 0 {
		m["tags"] = stringsAny(tags)
	}
	if len(h.UserPictureURLs) > 0 {
		m["userPictureUrls"] = stringsAny(h.UserPictureURLs)
	}
	return m
}
