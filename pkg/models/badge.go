package models

import "time"

// BadgeType selects the aggregate a badge is judged on
type BadgeType string

const (
	BadgeTypeCategoryCount   BadgeType = "CATEGORY_COUNT"
	BadgeTypePlanCount       BadgeType = "PLAN_COUNT"
	BadgeTypeReadingLogCount BadgeType = "READING_LOG_COUNT"
	BadgeTypeTimeCount       BadgeType = "TIME_COUNT"
)

// Valid reports whether t is a known badge type
func (t BadgeType) Valid() bool {
	switch t {
	case BadgeTypeCategoryCount, BadgeTypePlanCount, BadgeTypeReadingLogCount, BadgeTypeTimeCount:
		return true
	}
	return false
}

// Badge is a static achievement definition. Target narrows the aggregate:
// a category id, a plan status or a content type. TIME_COUNT has none.
type Badge struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Type        BadgeType `json:"type" db:"type"`
	Target      *string   `json:"target,omitempty" db:"target"`
	Goal        int       `json:"goal" db:"goal"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Description string    `json:"description" db:"description"`
}

// UserBadge records that a user holds a badge
type UserBadge struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	BadgeID    int64     `json:"badge_id" db:"badge_id"`
	AcquiredAt time.Time `json:"acquired_at" db:"acquired_at"`
}

// BadgeStatus is a badge with the caller's ownership
type BadgeStatus struct {
	Badge
	Acquired   bool       `json:"acquired"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
}
