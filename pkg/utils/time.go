package utils

import (
	"fmt"
	"time"
)

// Today returns the calendar day of now in loc, as midnight UTC. Calendar
// dates are stored as UTC midnights throughout.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns [start, end) of the calendar day date in loc
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// FormatTimestamp formats time for TUI display
func FormatTimestamp(t time.Time) string {
	now := time.Now()
	if t.Year() == now.Year() && t.Month() == now.Month() && t.Day() == now.Day() {
		return t.Format("15:04")
	}
	if now.Sub(t) < 7*24*time.Hour {
		return t.Format("Mon 15:04")
	}
	return t.Format("2006-01-02")
}

// TimeAgo returns human-readable time ago string
func TimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	}

	days := int(duration.Hours() / 24)
	if days == 1 {
		return "yesterday"
	}
	if days < 7 {
		return plural(days, "day")
	}
	return plural(days/7, "week")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
