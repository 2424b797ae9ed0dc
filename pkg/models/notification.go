package models

import "time"

// NotificationKind classifies pushed messages
type NotificationKind string

const (
	NotificationBadgeAwarded NotificationKind = "BADGE_AWARDED"
	NotificationLevelUp      NotificationKind = "LEVEL_UP"
	NotificationReminder     NotificationKind = "READING_REMINDER"
)

// Notification is a push message, persisted as the dispatch log
type Notification struct {
	ID        int64            `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Kind      NotificationKind `json:"kind" db:"kind"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	TraceID   string           `json:"trace_id,omitempty" db:"trace_id"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
