package core

import (
	"context"
	"fmt"
	"time"

	"booktrack/internal/repository"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// StatisticsService buckets a user's reading time over the current period
type StatisticsService interface {
	Reading(ctx context.Context, userID string, scope models.StatsScope) (*models.ReadingStatistics, error)
}

type statisticsService struct {
	timeRepo repository.TimeRecordRepository
	loc      *time.Location
	now      func() time.Time
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(timeRepo repository.TimeRecordRepository, loc *time.Location) StatisticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &statisticsService{timeRepo: timeRepo, loc: loc, now: time.Now}
}

type statBucket struct {
	label    string
	from, to time.Time // calendar days, to exclusive
}

// buckets lays out the periods of scope around today:
// day is every day of this month, week the last four Sunday-Saturday weeks
// ending with the current one, month every month of this year.
func buckets(scope models.StatsScope, today time.Time) []statBucket {
	y, m, _ := today.Date()
	var out []statBucket

	switch scope {
	case models.StatsScopeDay:
		first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		for d := first; d.Month() == m; d = d.AddDate(0, 0, 1) {
			out = append(out, statBucket{label: d.Format(models.DateLayout), from: d, to: d.AddDate(0, 0, 1)})
		}

	case models.StatsScopeWeek:
		saturday := today.AddDate(0, 0, int(time.Saturday-today.Weekday()))
		for i := 3; i >= 0; i-- {
			end := saturday.AddDate(0, 0, -7*i)
			start := end.AddDate(0, 0, -6)
			out = append(out, statBucket{
				label: start.Format(models.DateLayout) + " ~ " + end.Format(models.DateLayout),
				from:  start,
				to:    end.AddDate(0, 0, 1),
			})
		}

	case models.StatsScopeMonth:
		for month := time.January; month <= time.December; month++ {
			first := time.Date(y, month, 1, 0, 0, 0, 0, time.UTC)
			out = append(out, statBucket{label: first.Format("2006-01"), from: first, to: first.AddDate(0, 1, 0)})
		}
	}
	return out
}

func (s *statisticsService) Reading(ctx context.Context, userID string, scope models.StatsScope) (*models.ReadingStatistics, error) {
	if _, err := models.ParseStatsScope(string(scope)); err != nil {
		return nil, err
	}

	periods := buckets(scope, utils.Today(s.now(), s.loc))
	from, _ := utils.DayBounds(periods[0].from, s.loc)
	to, _ := utils.DayBounds(periods[len(periods)-1].to, s.loc)

	daily, err := s.timeRepo.DailyMinutes(ctx, userID, from, to, s.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily reading time: %w", err)
	}

	stats := &models.ReadingStatistics{Scope: scope, Items: make([]models.ReadingStatItem, 0, len(periods))}
	for _, p := range periods {
		total, days := 0, 0
		for d := p.from; d.Before(p.to); d = d.AddDate(0, 0, 1) {
			total += daily[d.Format(models.DateLayout)]
			days++
		}
		stats.Items = append(stats.Items, models.ReadingStatItem{
			Label:        p.label,
			AverageTime:  models.FormatHoursMinutes(total / days),
			TotalTime:    models.FormatHoursMinutes(total),
			TotalMinutes: total,
		})
	}
	return stats, nil
}
