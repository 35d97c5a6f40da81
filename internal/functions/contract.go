// Package functions defines the callable RPC contracts shared by the
// gateway client and the functions server. Every call is a POST of
// {"data": <request>} answered with {"result": <response>}.
package functions

import (
	"math"

	"hangoutsync/internal/domain"
)

const (
	SendFriendRequest        = "sendFriendRequest"
	UnsendFriendRequest      = "unsendFriendRequest"
	RespondToFriendRequest   = "respondToFriendRequest"
	UpdateNotificationStatus = "updateNotificationStatus"
	CreateHangout            = "createHangout"
	GetSearchServiceAPIKey   = "getSearchServiceAPIKey"
)

// Names lists every callable in registration order.
func Names() []string {
	return []string{
		SendFriendRequest,
		UnsendFriendRequest,
		RespondToFriendRequest,
		UpdateNotificationStatus,
		CreateHangout,
		GetSearchServiceAPIKey,
	}
}

func Path(name string) string { return "/v1/functions/" + name }

type Call[T any] struct {
	Data T `json:"data"`
}

type Result[T any] struct {
	Result T `json:"result"`
}

type SendFriendRequestRequest struct {
	FromUID        string   `json:"fromUid"`
	ToUID          string   `json:"toUid"`
	FromUsername   string   `json:"fromUsername"`
	FromAvatarURLs []string `json:"fromAvatarUrls"`
}

func (r SendFriendRequestRequest) Validate() error {
	avatars := ""
	for _, u := range r.FromAvatarURLs {
		if u != "" {
			avatars = u
			break
		}
	}
	return domain.RequireFields(map[string]string{
		"fromUid":        r.FromUID,
		"toUid":          r.ToUID,
		"fromUsername":   r.FromUsername,
		"fromAvatarUrls": avatars,
	})
}

type SendFriendRequestResponse struct {
	NotificationID string `json:"notificationId"`
}

type UnsendFriendRequestRequest struct {
	ToUID          string `json:"toUid"`
	NotificationID string `json:"notificationId"`
}

func (r UnsendFriendRequestRequest) Validate() error {
	return domain.RequireFields(map[string]string{
		"toUid":          r.ToUID,
		"notificationId": r.NotificationID,
	})
}

// SuccessResponse answers calls that only report an outcome.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RespondToFriendRequestRequest accepts the request FromUID sent to ToUID.
type RespondToFriendRequestRequest struct {
	FromUID string `json:"fromUid"`
	ToUID   string `json:"toUid"`
}

func (r RespondToFriendRequestRequest) Validate() error {
	return domain.RequireFields(map[string]string{
		"fromUid": r.FromUID,
		"toUid":   r.ToUID,
	})
}

type UpdateNotificationStatusRequest struct {
	ToUID          string `json:"toUid"`
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
}

func (r UpdateNotificationStatusRequest) Validate() error {
	if err := domain.RequireFields(map[string]string{
		"toUid":          r.ToUID,
		"notificationId": r.NotificationID,
		"status":         r.Status,
	}); err != nil {
		return err
	}
	if _, err := domain.ParseNotificationStatus(r.Status); err != nil {
		return domain.NewValidationError(map[string]string{"status": "unknown value"})
	}
	return nil
}

type CreateHangoutRequest struct {
	// CreationDate is epoch milliseconds.
	CreationDate    int64            `json:"creationDate"`
	Duration        domain.Duration  `json:"duration"`
	Vibe            domain.Vibe      `json:"vibe"`
	ParticipantUIDs []string         `json:"participantUids"`
	Location        *domain.Location `json:"location,omitempty"`
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Budget          float64          `json:"budget"`
	IsOutdoor       bool             `json:"isOutdoor"`
	OwnerUID        string           `json:"ownerUid"`
}

func (r CreateHangoutRequest) Validate() error {
	fields := map[string]string{}
	if r.OwnerUID == "" {
		fields["ownerUid"] = "required"
	}
	if len(r.ParticipantUIDs) == 0 {
		fields["participantUids"] = "required"
	}
	for _, uid := range r.ParticipantUIDs {
		if uid == "" {
			fields["participantUids"] = "must not contain empty ids"
			break
		}
	}
	if r.CreationDate <= 0 {
		fields["creationDate"] = "required"
	}
	if !r.Duration.Valid() {
		fields["duration"] = "unknown value"
	}
	if !r.Vibe.Valid() {
		fields["vibe"] = "unknown value"
	}
	if r.Budget < 0 || math.IsNaN(r.Budget) || math.IsInf(r.Budget, 0) {
		fields["budget"] = "must be zero or more"
	}
	if r.Location != nil && r.Location.Name == "" {
		fields["location.name"] = "required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

type CreateHangoutResponse struct {
	HangoutID string `json:"hangoutId"`
}

type SearchServiceAPIKeyRequest struct{}

type SearchServiceAPIKeyResponse struct {
	APIKey string `json:"apiKey"`
}
