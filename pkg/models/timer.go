package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeRecord is one reading session. EndTime is nil while the timer runs.
type TimeRecord struct {
	ID              int64      `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	PlanID          int64      `json:"plan_id" db:"plan_id"`
	StartTime       time.Time  `json:"start_time" db:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty" db:"end_time"`
	DurationMinutes int        `json:"duration_minutes" db:"duration_minutes"`
}

// TimerStopResult reports what a stop changed
type TimerStopResult struct {
	Record      *TimeRecord `json:"record"`
	CurrentPage int         `json:"current_page"`
	Completed   bool        `json:"completed"`
	NewBadges   []*Badge    `json:"new_badges"`
}

// TimeStats is a plan's accumulated reading time
type TimeStats struct {
	PlanID    int64  `json:"plan_id"`
	TotalTime string `json:"total_time"`
	TodayTime string `json:"today_time"`
}

// TimeDetailItem is one session on a given day
type TimeDetailItem struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// TimeDetails lists the sessions of a day
type TimeDetails struct {
	PlanID       int64            `json:"plan_id"`
	Date         Date             `json:"date"`
	Items        []TimeDetailItem `json:"items"`
	TotalMinutes int              `json:"total_minutes"`
}

// FormatClock renders seconds as hh:mm:ss
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// StatsScope is the bucket size of reading statistics
type StatsScope string

const (
	StatsScopeDay   StatsScope = "day"
	StatsScopeWeek  StatsScope = "week"
	StatsScopeMonth StatsScope = "month"
)

// ParseStatsScope validates a statistics scope
func ParseStatsScope(s string) (StatsScope, error) {
	switch scope := StatsScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case StatsScopeDay, StatsScopeWeek, StatsScopeMonth:
		return scope, nil
	}
	return "", ErrInvalidStatsScope.WithDetail("scope", s)
}

// ReadingStatItem is one bucket: a day, a Sunday-Saturday week or a month.
// AverageTime is the total divided by the days in the bucket.
type ReadingStatItem struct {
	Label        string `json:"label"`
	AverageTime  string `json:"average_time"`
	TotalTime    string `json:"total_time"`
	TotalMinutes int    `json:"total_minutes"`
}

// ReadingStatistics is a user's reading time over the current period
type ReadingStatistics struct {
	Scope StatsScope        `json:"scope"`
	Items []ReadingStatItem `json:"items"`
}

// FormatHoursMinutes renders minutes as hh:mm
func FormatHoursMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
