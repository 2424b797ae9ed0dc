package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// TimerService runs reading sessions. A user has at most one open session.
type TimerService interface {
	Start(ctx context.Context, userID string, planID int64) (*models.TimeRecord, error)
	Stop(ctx context.Context, userID string, currentPage int) (*models.TimerStopResult, error)
	TimeStats(ctx context.Context, userID string, planID int64) (*models.TimeStats, error)
	Details(ctx context.Context, userID string, planID int64, date time.Time) (*models.TimeDetails, error)
}

type timerService struct {
	timeRepo  repository.TimeRecordRepository
	planRepo  repository.PlanRepository
	bookRepo  repository.BookRepository
	tx        repository.Transactor
	evaluator AchievementEvaluator
	loc       *time.Location
	now       func() time.Time
}

// NewTimerService creates a new timer service
func NewTimerService(
	timeRepo repository.TimeRecordRepository,
	planRepo repository.PlanRepository,
	bookRepo repository.BookRepository,
	tx repository.Transactor,
	evaluator AchievementEvaluator,
	loc *time.Location,
) TimerService {
	if loc == nil {
		loc = time.UTC
	}
	return &timerService{
		timeRepo:  timeRepo,
		planRepo:  planRepo,
		bookRepo:  bookRepo,
		tx:        tx,
		evaluator: evaluator,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *timerService) ownedPlan(ctx context.Context, userID string, planID int64) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, models.ErrPlanNotOwned
	}
	return plan, nil
}

// Start opens a session on the plan. The open-session index backs up the
// pre-check when two starts race.
func (s *timerService) Start(ctx context.Context, userID string, planID int64) (*models.TimeRecord, error) {
	plan, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.PlanStatusCompleted {
		return nil, models.ErrPlanAlreadyCompleted
	}

	if _, err := s.timeRepo.FindOpen(ctx, userID); err == nil {
		return nil, models.ErrTimerAlreadyRunning
	} else if !errors.Is(err, models.ErrNoRunningTimer) {
		return nil, fmt.Errorf("failed to check running timer: %w", err)
	}

	rec, err := s.timeRepo.Start(ctx, userID, planID, s.now())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Stop closes the open session, records the page reached and evaluates
// badges in the same transaction. Pushes go out after commit.
func (s *timerService) Stop(ctx context.Context, userID string, currentPage int) (*models.TimerStopResult, error) {
	if currentPage < 0 {
		return nil, fmt.Errorf("current page %d: %w", currentPage, models.ErrInvalidInput)
	}

	var result *models.TimerStopResult
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.timeRepo.LockOpen(ctx, userID)
		if err != nil {
			return err
		}

		plan, err := s.planRepo.GetByIDForUpdate(ctx, rec.PlanID)
		if err != nil {
			return err
		}
		book, err := s.bookRepo.GetByISBN(ctx, plan.BookISBN)
		if err != nil {
			return fmt.Errorf("failed to get plan book: %w", err)
		}

		if currentPage < plan.CurrentPage {
			return models.ErrPageDecreased.WithDetail("current_page", plan.CurrentPage)
		}
		if currentPage > book.TotalPages {
			return models.ErrPageExceedsTotal.WithDetail("total_pages", book.TotalPages)
		}

		end := s.now()
		minutes := int(end.Sub(rec.StartTime) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		if err := s.timeRepo.Close(ctx, rec.ID, end, minutes); err != nil {
			return err
		}
		rec.EndTime = &end
		rec.DurationMinutes = minutes

		status := plan.Status
		completed := status == models.PlanStatusReading && book.TotalPages > 0 && currentPage == book.TotalPages
		if completed {
			status = models.PlanStatusCompleted
		}
		if err := s.planRepo.UpdateProgress(ctx, plan.ID, currentPage, status); err != nil {
			return err
		}

		awarded := []*models.Badge{}
		if completed {
			badges, err := s.evaluator.Evaluate(ctx, userID, Event{Kind: EventPlanCompleted})
			if err != nil {
				return err
			}
			awarded = append(awarded, badges...)
		}
		badges, err := s.evaluator.Evaluate(ctx, userID, Event{Kind: EventTimerStopped})
		if err != nil {
			return err
		}
		awarded = append(awarded, badges...)

		result = &models.TimerStopResult{
			Record:      rec,
			CurrentPage: currentPage,
			Completed:   completed,
			NewBadges:   awarded,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Completed {
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"plan_id": result.Record.PlanID,
		}).Info("plan completed")
	}
	events := []Event{{Kind: EventTimerStopped}}
	if result.Completed {
		events = append(events, Event{Kind: EventPlanCompleted})
	}
	s.evaluator.Announce(ctx, userID, result.NewBadges, events...)
	return result, nil
}

// TimeStats sums closed sessions overall and for the current local day
func (s *timerService) TimeStats(ctx context.Context, userID string, planID int64) (*models.TimeStats, error) {
	if _, err := s.ownedPlan(ctx, userID, planID); err != nil {
		return nil, err
	}

	from, to := utils.DayBounds(utils.Today(s.now(), s.loc), s.loc)
	total, today, err := s.timeRepo.PlanSeconds(ctx, planID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reading time: %w", err)
	}
	return &models.TimeStats{
		PlanID:    planID,
		TotalTime: models.FormatClock(total),
		TodayTime: models.FormatClock(today),
	}, nil
}

// Details lists the sessions started on date, in local HH:MM
func (s *timerService) Details(ctx context.Context, userID string, planID int64, date time.Time) (*models.TimeDetails, error) {
	if _, err := s.ownedPlan(ctx, userID, planID); err != nil {
		return nil, err
	}

	day := models.Midnight(date)
	from, to := utils.DayBounds(day, s.loc)
	records, err := s.timeRepo.ListByPlanBetween(ctx, planID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading sessions: %w", err)
	}

	details := &models.TimeDetails{PlanID: planID, Date: models.NewDate(day), Items: []models.TimeDetailItem{}}
	for _, rec := range records {
		item := models.TimeDetailItem{
			StartTime:       rec.StartTime.In(s.loc).Format("15:04"),
			DurationMinutes: rec.DurationMinutes,
		}
		if rec.EndTime != nil {
			item.EndTime = rec.EndTime.In(s.loc).Format("15:04")
		}
		details.Items = append(details.Items, item)
		details.TotalMinutes += rec.DurationMinutes
	}
	return details, nil
}
