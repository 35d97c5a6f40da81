package domain

import (
	"fmt"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	}
	return false
}

func ParseRequestStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown request status %q", raw)
	}
	return s, nil
}

type FriendLink struct {
	FriendUID     string    `mapstructure:"friendUid" json:"friendUid"`
	EstablishedAt time.Time `mapstructure:"establishedAt" json:"establishedAt"`
}

// FriendRequest is the requester-side record of an outstanding request,
// stored at users/{requester}/pendingFriendRequests/{target}.
type FriendRequest struct {
	TargetUID            string        `mapstructure:"targetUid" json:"targetUid"`
	RequestedAt          time.Time     `mapstructure:"requestedAt" json:"requestedAt"`
	RemoteNotificationID *string       `mapstructure:"remoteNotificationId" json:"remoteNotificationId,omitempty"`
	Status               RequestStatus `mapstructure:"status" json:"status"`
}
