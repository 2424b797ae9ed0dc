package models

import (
	"strings"
	"time"
)

// ContentType distinguishes reading log entries
type ContentType string

const (
	ContentTypeReview ContentType = "REVIEW"
	ContentTypeScrap  ContentType = "SCRAP"
)

// Valid reports whether c is a known content type
func (c ContentType) Valid() bool {
	return c == ContentTypeReview || c == ContentTypeScrap
}

// ReadingLog is a review or a scrapped passage attached to a plan
type ReadingLog struct {
	ID          int64       `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	PlanID      int64       `json:"plan_id" db:"plan_id"`
	ContentType ContentType `json:"content_type" db:"content_type"`
	Content     string      `json:"content" db:"content"`
	ImageURL    string      `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ReadingLogResult is a created log with any badges it earned
type ReadingLogResult struct {
	Log       *ReadingLog `json:"log"`
	NewBadges []*Badge    `json:"new_badges"`
}

// Scrap is a scrapped passage with the book it came from
type Scrap struct {
	ID        int64     `json:"id"`
	PlanID    int64     `json:"plan_id"`
	Content   string    `json:"content"`
	BookTitle string    `json:"book_title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// ScrapOrder sorts the per-book scrap summary
type ScrapOrder string

const (
	ScrapOrderLatest ScrapOrder = "latest"
	ScrapOrderOldest ScrapOrder = "oldest"
	ScrapOrderCount  ScrapOrder = "count"
)

// ParseScrapOrder falls back to latest for anything unrecognised
func ParseScrapOrder(s string) ScrapOrder {
	switch o := ScrapOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case ScrapOrderOldest, ScrapOrderCount:
		return o
	}
	return ScrapOrderLatest
}

// ScrapBook groups a user's scraps by the plan's book
type ScrapBook struct {
	PlanID      int64     `json:"plan_id"`
	BookTitle   string    `json:"book_title"`
	Author      string    `json:"author"`
	ImageURL    string    `json:"image_url,omitempty"`
	ScrapCount  int64     `json:"scrap_count"`
	LatestScrap time.Time `json:"latest_scrap"`
}
