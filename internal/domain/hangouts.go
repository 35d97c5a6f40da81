package domain

import (
	"fmt"
	"time"
)

type Duration string

const (
	DurationQuick     Duration = "quick"
	DurationHalfDay   Duration = "halfDay"
	DurationFullDay   Duration = "fullDay"
	DurationOvernight Duration = "overnight"
)

func (d Duration) Valid() bool {
	switch d {
	case DurationQuick, DurationHalfDay, DurationFullDay, DurationOvernight:
		return true
	}
	return false
}

func ParseDuration(raw string) (Duration, error) {
	d := Duration(raw)
	if !d.Valid() {
		return "", fmt.Errorf("unknown hangout duration %q", raw)
	}
	return d, nil
}

type HangoutStatus string

const (
	HangoutPending   HangoutStatus = "pending"
	HangoutConfirmed HangoutStatus = "confirmed"
	HangoutCompleted HangoutStatus = "completed"
	HangoutCancelled HangoutStatus = "cancelled"
)

func (s HangoutStatus) Valid() bool {
	switch s {
	case HangoutPending, HangoutConfirmed, HangoutCompleted, HangoutCancelled:
		return true
	}
	return false
}

func ParseHangoutStatus(raw string) (HangoutStatus, error) {
	s := HangoutStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown hangout status %q", raw)
	}
	return s, nil
}

type Location struct {
	Name string   `mapstructure:"name" json:"name"`
	Lat  *float64 `mapstructure:"lat" json:"lat,omitempty"`
	Lon  *float64 `mapstructure:"lon" json:"lon,omitempty"`
}

// HangoutReference is the per-user summary stored under users/{uid}/hangouts.
// The full record lives at StoragePath.
type HangoutReference struct {
	HangoutID       string    `mapstructure:"hangoutId" json:"hangoutId"`
	StoragePath     string    `mapstructure:"storagePath" json:"storagePath"`
	CreatedAt       time.Time `mapstructure:"createdAt" json:"createdAt"`
	Title           string    `mapstructure:"title" json:"title"`
	ParticipantUIDs []string  `mapstructure:"participantUids" json:"participantUids"`
}

type Hangout struct {
	HangoutID       string        `mapstructure:"hangoutId" json:"hangoutId"`
	CreatedAt       time.Time     `mapstructure:"createdAt" json:"createdAt"`
	StartAt         *time.Time    `mapstructure:"startAt" json:"startAt,omitempty"`
	EndAt           *time.Time    `mapstructure:"endAt" json:"endAt,omitempty"`
	Duration        Duration      `mapstructure:"duration" json:"duration"`
	Vibe            Vibe          `mapstructure:"vibe" json:"vibe"`
	Status          HangoutStatus `mapstructure:"status" json:"status"`
	ParticipantUIDs []string      `mapstructure:"participantUids" json:"participantUids"`
	Location        *Location     `mapstructure:"location" json:"location,omitempty"`
	Title           *string       `mapstructure:"title" json:"title,omitempty"`
	Description     *string       `mapstructure:"description" json:"description,omitempty"`
	Tags            []string      `mapstructure:"tags" json:"tags,omitempty"`
	Budget          float64       `mapstructure:"budget" json:"budget"`
	IsOutdoor       bool          `mapstructure:"isOutdoor" json:"isOutdoor"`
	UserPictureURLs []string      `mapstructure:"userPictureUrls" json:"userPictureUrls,omitempty"`
}

// Reference builds the per-user summary for h.
func (h Hangout) Reference() HangoutReference {
	return HangoutReference{
		HangoutID:       h.HangoutID,
		StoragePath:     HangoutPath(h.HangoutID),
		CreatedAt:       h.CreatedAt,
		Title:           StringValue(h.Title),
		ParticipantUIDs: append([]string(nil), h.ParticipantUIDs...),
	}
}

func HangoutPath(id string) string { return "hangouts/" + id }

// NormalizeTags trims, drops empties and de-duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
