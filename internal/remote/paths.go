package remote

import (
	"errors"
	"strings"
)

const (
	UsersCollection    = "users"
	HangoutsCollection = "hangouts"
)

func FriendsCollection(uid string) string { return "users/" + uid + "/friends" }

func PendingRequestsCollection(uid string) string {
	return "users/" + uid + "/pendingFriendRequests"
}

func NotificationsCollection(uid string) string { return "users/" + uid + "/notifications" }

func UserHangoutsCollection(uid string) string { return "users/" + uid + "/hangouts" }

var ErrBadPath = errors.New("invalid document path")

// SplitDocPath splits "a/b/c/d" into collection "a/b/c" and id "d".
// Document paths always have an even number of segments.
func SplitDocPath(path string) (string, string, error) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", ErrBadPath
	}
	for _, p := range parts {
		if p == "" {
			return "", "", ErrBadPath
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// ValidCollection reports whether path names a collection (odd segment count).
func ValidCollection(path string) bool {
	path = strings.Trim(path, "/")
	if path == "" {
		return false
	}
	parts := strings.Split(path, "/")
	if len(parts)%2 != 1 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// OwnerOf returns the uid whose subtree contains collection, if any.
func OwnerOf(collection string) (string, bool) {
	parts := strings.Split(strings.Trim(collection, "/"), "/")
	if len(parts) >= 2 && parts[0] == UsersCollection && parts[1] != "" {
		return parts[1], true
	}
	return "", false
}
