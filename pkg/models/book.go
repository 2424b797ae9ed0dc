package models

import (
	"strings"
	"time"
)

// Tier is the reading difficulty of a book
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

// minutes per page
var tierSpeed = map[Tier]int{
	TierBeginner:     2,
	TierIntermediate: 3,
	TierAdvanced:     5,
}

// SpeedFactor returns minutes per page. Unknown tiers read at beginner speed.
func (t Tier) SpeedFactor() int {
	if s, ok := tierSpeed[t]; ok {
		return s
	}
	return tierSpeed[TierBeginner]
}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	_, ok := tierSpeed[t]
	return ok
}

// ParseTier accepts the English labels and the Korean labels the classifier
// may answer with.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner", "easy", "초급":
		return TierBeginner, true
	case "intermediate", "medium", "중급":
		return TierIntermediate, true
	case "advanced", "hard", "고급":
		return TierAdvanced, true
	}
	return "", false
}

// Book is created on first reference and is immutable except for the
// cached Difficulty.
type Book struct {
	ISBN          string     `json:"isbn" db:"isbn"`
	Title         string     `json:"title" db:"title"`
	Author        string     `json:"author" db:"author"`
	Publisher     string     `json:"publisher" db:"publisher"`
	PublishedDate *time.Time `json:"published_date,omitempty" db:"published_date"`
	Description   string     `json:"description" db:"description"`
	CoverURL      string     `json:"cover_url" db:"cover_url"`
	TotalPages    int        `json:"total_pages" db:"total_pages"`
	CategoryID    *int64     `json:"category_id,omitempty" db:"category_id"`
	Difficulty    *Tier      `json:"difficulty,omitempty" db:"difficulty"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Category is a node of the imported category tree
type Category struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	ParentID *int64 `json:"parent_id,omitempty" db:"parent_id"`
}
