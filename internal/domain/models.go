package domain

import "time"

type UserRecord struct {
	UID      string  `mapstructure:"uid" json:"uid"`
	Email    *string `mapstructure:"email" json:"email,omitempty"`
	PhotoURL *string `mapstructure:"photoURL" json:"photoURL,omitempty"`
	Username *string `mapstructure:"username" json:"username,omitempty"`
	FullName *string `mapstructure:"fullName" json:"fullName,omitempty"`
}

func (u UserRecord) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	if u.Username != nil {
		return *u.Username
	}
	return ""
}

// Account is the server-side credential row behind a UserRecord.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	Provider     string
	ProviderID   string
	CreatedAt    time.Time
}

type NotificationToken struct {
	UID       string    `json:"-"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
