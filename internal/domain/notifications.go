package domain

import (
	"fmt"
	"time"
)

type NotificationKind string

const (
	KindFriendRequest  NotificationKind = "friendRequest"
	KindHangoutRequest NotificationKind = "hangoutRequest"
	KindReminder       NotificationKind = "reminder"
	KindPlaceholder    NotificationKind = "placeholder"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindFriendRequest, KindHangoutRequest, KindReminder, KindPlaceholder:
		return true
	}
	return false
}

func ParseNotificationKind(raw string) (NotificationKind, error) {
	k := NotificationKind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("unknown notification kind %q", raw)
	}
	return k, nil
}

type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationAccepted NotificationStatus = "accepted"
	NotificationRejected NotificationStatus = "rejected"
	NotificationRead     NotificationStatus = "read"
	NotificationUnread   NotificationStatus = "unread"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationAccepted, NotificationRejected, NotificationRead, NotificationUnread:
		return true
	}
	return false
}

func ParseNotificationStatus(raw string) (NotificationStatus, error) {
	s := NotificationStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown notification status %q", raw)
	}
	return s, nil
}

// Notification is keyed by ID once the server has assigned one.
type Notification struct {
	ID             string             `mapstructure:"id" json:"id,omitempty"`
	FromUID        string             `mapstructure:"fromUid" json:"fromUid"`
	FromAvatarURLs []string           `mapstructure:"fromAvatarUrls" json:"fromAvatarUrls,omitempty"`
	ToUID          string             `mapstructure:"toUid" json:"toUid"`
	Kind           NotificationKind   `mapstructure:"kind" json:"kind"`
	Message        *string            `mapstructure:"message" json:"message,omitempty"`
	Status         NotificationStatus `mapstructure:"status" json:"status"`
	CreatedAt      time.Time          `mapstructure:"createdAt" json:"createdAt"`
}

// Unseen reports whether the notification still needs the recipient's attention.
func (n Notification) Unseen() bool {
	return n.Status == NotificationUnread || n.Status == NotificationPending
}
