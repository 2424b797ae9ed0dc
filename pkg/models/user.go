package models

import "time"

// User is provisioned by the identity provider. booktrack only reads the
// profile and maintains Level.
type User struct {
	ID           string    `json:"id" db:"id"`
	Nickname     string    `json:"nickname" db:"nickname"`
	ProfileImage string    `json:"profile_image,omitempty" db:"profile_image"`
	Level        int       `json:"level" db:"level"`
	PushEnabled  bool      `json:"push_enabled" db:"push_enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserStats is derived from the user row and the awarded badges
type UserStats struct {
	UserID     string `json:"user_id"`
	Level      int    `json:"level"`
	BadgeCount int    `json:"badge_count"`
}

// DeviceToken is a push target registered by a client
type DeviceToken struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LevelForBadges is the level a user with badgeCount badges holds.
func LevelForBadges(badgeCount int) int {
	if badgeCount < 0 {
		badgeCount = 0
	}
	return 1 + badgeCount/2
}
