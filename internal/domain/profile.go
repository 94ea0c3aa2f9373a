package domain

import (
	"strings"
	"time"
)

// OnlineWindow is the freshness threshold for deriving online status from last_seen.
const OnlineWindow = 35 * time.Second

const (
	defaultGender      = "male"
	defaultAge         = 18
	defaultCountryCode = "US"
)

// Profile is a row of the profiles table.
type Profile struct {
	ID          string     `json:"id"`
	Nickname    *string    `json:"nickname,omitempty"`
	Role        Role       `json:"role"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	Age         *int       `json:"age,omitempty"`
	CountryCode *string    `json:"country_code,omitempty"`
	Interests   []string   `json:"interests,omitempty"`
}

// UserPresence is a profile as seen by the chat client, with derived fields filled in.
type UserPresence struct {
	ID          string     `json:"id"`
	Nickname    string     `json:"nickname"`
	Role        Role       `json:"role"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Online      bool       `json:"online"`
	Gender      string     `json:"gender"`
	Age         int        `json:"age"`
	CountryCode string     `json:"country_code"`
	Interests   []string   `json:"interests"`
	Avatar      string     `json:"avatar"`
}

// IsOnline derives presence from the last heartbeat.
func IsOnline(lastSeen *time.Time, now time.Time) bool {
	if lastSeen == nil {
		return false
	}
	return now.Sub(*lastSeen) < OnlineWindow
}

// Presence turns a stored profile into a UserPresence evaluated at now.
func (p Profile) Presence(now time.Time) UserPresence {
	u := UserPresence{
		ID:          p.ID,
		Role:        ParseRole(string(p.Role)),
		LastSeen:    p.LastSeen,
		Online:      IsOnline(p.LastSeen, now),
		Gender:      defaultGender,
		Age:         defaultAge,
		CountryCode: defaultCountryCode,
		Interests:   []string{},
	}
	if p.Nickname != nil {
		u.Nickname = *p.Nickname
	}
	if p.Gender != nil && *p.Gender != "" {
		u.Gender = *p.Gender
	}
	if p.Age != nil && *p.Age > 0 {
		u.Age = *p.Age
	}
	if p.CountryCode != nil && strings.TrimSpace(*p.CountryCode) != "" {
		u.CountryCode = strings.ToUpper(strings.TrimSpace(*p.CountryCode))
	}
	if p.Interests != nil {
		u.Interests = append(u.Interests, p.Interests...)
	}
	u.Avatar = "/avatars/standard/" + u.Gender + ".png"
	return u
}
