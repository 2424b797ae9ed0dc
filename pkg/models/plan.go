package models

import (
	"encoding/json"
	"time"
)

// PlanStatus is the lifecycle state of a plan
type PlanStatus string

const (
	PlanStatusWishlist  PlanStatus = "WISHLIST"
	PlanStatusReading   PlanStatus = "READING"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusAbandoned PlanStatus = "ABANDONED"
)

// Valid reports whether s is a known status
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusWishlist, PlanStatusReading, PlanStatusCompleted, PlanStatusAbandoned:
		return true
	}
	return false
}

// Plan is a user's commitment to read one book.
type Plan struct {
	ID               int64       `db:"id"`
	UserID           string      `db:"user_id"`
	BookISBN         string      `db:"book_isbn"`
	Status           PlanStatus  `db:"status"`
	StartDate        *time.Time  `db:"start_date"`
	EndDate          *time.Time  `db:"end_date"`
	CurrentPage      int         `db:"current_page"`
	IsFreePlan       bool        `db:"is_free_plan"`
	ReadingDates     []time.Time `db:"reading_dates"`
	ExcludedDates    []time.Time `db:"excluded_dates"`
	ExcludedWeekdays []int       `db:"excluded_weekdays"`
	DailyPages       int         `db:"daily_pages"`
	DailyMinutes     int         `db:"daily_minutes"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`

	Book *Book `db:"-"`
}

// planWire is the JSON shape of Plan with calendar fields as YYYY-MM-DD
type planWire struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"user_id"`
	BookISBN         string     `json:"book_isbn"`
	Status           PlanStatus `json:"status"`
	StartDate        *Date      `json:"start_date,omitempty"`
	EndDate          *Date      `json:"end_date,omitempty"`
	CurrentPage      int        `json:"current_page"`
	IsFreePlan       bool       `json:"is_free_plan"`
	ReadingDates     []Date     `json:"reading_dates"`
	ExcludedDates    []Date     `json:"excluded_dates"`
	ExcludedWeekdays []int      `json:"excluded_weekdays"`
	DailyPages       int        `json:"daily_pages"`
	DailyMinutes     int        `json:"daily_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Book             *Book      `json:"book,omitempty"`
}

func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planWire{
		ID:               p.ID,
		UserID:           p.UserID,
		BookISBN:         p.BookISBN,
		Status:           p.Status,
		StartDate:        datePtr(p.StartDate),
		EndDate:          datePtr(p.EndDate),
		CurrentPage:      p.CurrentPage,
		IsFreePlan:       p.IsFreePlan,
		ReadingDates:     Dates(p.ReadingDates),
		ExcludedDates:    Dates(p.ExcludedDates),
		ExcludedWeekdays: nonNilInts(p.ExcludedWeekdays),
		DailyPages:       p.DailyPages,
		DailyMinutes:     p.DailyMinutes,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Book:             p.Book,
	})
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Plan{
		ID:               w.ID,
		UserID:           w.UserID,
		BookISBN:         w.BookISBN,
		Status:           w.Status,
		StartDate:        timePtr(w.StartDate),
		EndDate:          timePtr(w.EndDate),
		CurrentPage:      w.CurrentPage,
		IsFreePlan:       w.IsFreePlan,
		ReadingDates:     Times(w.ReadingDates),
		ExcludedDates:    Times(w.ExcludedDates),
		ExcludedWeekdays: w.ExcludedWeekdays,
		DailyPages:       w.DailyPages,
		DailyMinutes:     w.DailyMinutes,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
		Book:             w.Book,
	}
	return nil
}

// PlanRequest carries the parameters of a preview or create call
type PlanRequest struct {
	ISBN                  string `json:"isbn"`
	StartDate             Date   `json:"start_date"`
	PeriodDays            int    `json:"period_days"`
	ExcludeDates          []Date `json:"exclude_dates"`
	ExcludeWeekdays       []int  `json:"exclude_weekdays"`
	IsFreePlan            bool   `json:"is_free_plan"`
	UseRecommendedPlan    bool   `json:"use_recommended_plan"`
	RecommendedPeriodDays int    `json:"recommended_period_days"`
}

// Pacing is the derived reading load of a schedule
type Pacing struct {
	DailyPages      int  `json:"daily_pages"`
	DailyMinutes    int  `json:"daily_minutes"`
	TooLong         bool `json:"too_long"`
	RecommendedDays int  `json:"recommended_days"`
}

// PlanPreview is the unpersisted result of a preview
type PlanPreview struct {
	Book         *Book  `json:"book"`
	Tier         Tier   `json:"tier"`
	IsFreePlan   bool   `json:"is_free_plan"`
	StartDate    *Date  `json:"start_date,omitempty"`
	EndDate      *Date  `json:"end_date,omitempty"`
	ReadingDates []Date `json:"reading_dates"`
	Pacing
}

// PlanSummary is a list row
type PlanSummary struct {
	PlanID      int64      `json:"plan_id"`
	ISBN        string     `json:"isbn"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	CoverURL    string     `json:"cover_url"`
	Status      PlanStatus `json:"status"`
	StartDate   *Date      `json:"start_date,omitempty"`
	EndDate     *Date      `json:"end_date,omitempty"`
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	IsFreePlan  bool       `json:"is_free_plan"`
	ScrapCount  int        `json:"scrap_count,omitempty"`
}

// PlanDetail is a plan with its progress
type PlanDetail struct {
	Plan         *Plan `json:"plan"`
	Book         *Book `json:"book"`
	ProgressRate int   `json:"progress_rate"`
}

// ProgressRate is current/total as a rounded percentage
func ProgressRate(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(current)/float64(total)*100 + 0.5)
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
