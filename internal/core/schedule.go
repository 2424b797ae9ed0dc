package core

import (
	"time"

	"booktrack/pkg/models"
)

// MaxDailyMinutes is the reading load above which a schedule is flagged as
// too long and a longer period is recommended.
const MaxDailyMinutes = 90

// ComputeSchedule walks forward from start one day at a time and collects
// periodDays dates that are neither excluded explicitly nor fall on an
// excluded weekday (0=Sunday..6=Saturday). The walk is bounded; when the
// exclusions leave no room it fails with ErrUnsatisfiableSchedule.
func ComputeSchedule(start time.Time, periodDays int, excludeDates []time.Time, excludeWeekdays []int) ([]time.Time, error) {
	if start.IsZero() || periodDays <= 0 {
		return []time.Time{}, nil
	}

	var blockedDays [7]bool
	for _, wd := range excludeWeekdays {
		if wd < 0 || wd > 6 {
			return nil, models.ErrInvalidWeekday.WithDetail("weekday", wd)
		}
		blockedDays[wd] = true
	}

	allowed := 0
	for _, blocked := range blockedDays {
		if !blocked {
			allowed++
		}
	}
	if allowed == 0 {
		return nil, models.ErrUnsatisfiableSchedule
	}

	excluded := make(map[time.Time]struct{}, len(excludeDates))
	for _, d := range excludeDates {
		excluded[models.Midnight(d)] = struct{}{}
	}

	naive := (periodDays*7+allowed-1)/allowed + len(excluded)
	horizon := 3 * naive

	dates := make([]time.Time, 0, periodDays)
	day := models.Midnight(start)
	for i := 0; i < horizon && len(dates) < periodDays; i++ {
		_, isExcluded := excluded[day]
		if !isExcluded && !blockedDays[day.Weekday()] {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	if len(dates) < periodDays {
		return nil, models.ErrUnsatisfiableSchedule.WithDetail("horizon_days", horizon)
	}
	return dates, nil
}

// Pace derives the daily load of reading totalPages over days at tier speed.
// Remainder pages are not distributed.
func Pace(totalPages, days int, tier models.Tier) models.Pacing {
	if days <= 0 {
		return models.Pacing{}
	}

	speed := tier.SpeedFactor()
	p := models.Pacing{
		DailyPages:      totalPages / days,
		RecommendedDays: days,
	}
	p.DailyMinutes = p.DailyPages * speed
	p.TooLong = p.DailyMinutes > MaxDailyMinutes
	if p.TooLong {
		p.RecommendedDays = (totalPages*speed + MaxDailyMinutes - 1) / MaxDailyMinutes
	}
	return p
}
