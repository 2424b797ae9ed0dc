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

// PlanService owns the plan lifecycle: WISHLIST -> READING -> COMPLETED or
// ABANDONED. Completion itself happens on timer stop.
type PlanService interface {
	Preview(ctx context.Context, userID string, req models.PlanRequest) (*models.PlanPreview, error)
	Create(ctx context.Context, userID string, req models.PlanRequest) (*models.Plan, error)
	Abandon(ctx context.Context, userID string, planID int64) error
	Extend(ctx context.Context, userID string, planID int64, newEndDate time.Time) (*models.Plan, error)
	Delete(ctx context.Context, userID string, planID int64) error
	DeleteMany(ctx context.Context, userID string, planIDs []int64) (int64, error)
	AddToWishlist(ctx context.Context, userID, isbn string) error
	RemoveFromWishlist(ctx context.Context, userID, isbn string) error

	List(ctx context.Context, userID string) ([]*models.PlanSummary, error)
	ListByStatus(ctx context.Context, userID string, status models.PlanStatus) ([]*models.PlanSummary, error)
	Today(ctx context.Context, userID string) ([]*models.PlanSummary, error)
	ByDate(ctx context.Context, userID string, date time.Time) ([]*models.PlanSummary, error)
	Calendar(ctx context.Context, userID string, year int, month time.Month) ([]*models.PlanSummary, error)
	Detail(ctx context.Context, userID string, planID int64) (*models.PlanDetail, error)
}

type planService struct {
	planRepo   repository.PlanRepository
	bookRepo   repository.BookRepository
	tx         repository.Transactor
	books      BookService
	classifier DifficultyClassifier
	loc        *time.Location
	now        func() time.Time
}

// NewPlanService creates a new plan service. loc decides what "today" is.
func NewPlanService(
	planRepo repository.PlanRepository,
	bookRepo repository.BookRepository,
	tx repository.Transactor,
	books BookService,
	classifier DifficultyClassifier,
	loc *time.Location,
) PlanService {
	if loc == nil {
		loc = time.UTC
	}
	return &planService{
		planRepo:   planRepo,
		bookRepo:   bookRepo,
		tx:         tx,
		books:      books,
		classifier: classifier,
		loc:        loc,
		now:        time.Now,
	}
}

func (s *planService) today() time.Time {
	return utils.Today(s.now(), s.loc)
}

// draft is a computed but unpersisted plan
type draft struct {
	book   *models.Book
	tier   models.Tier
	dates  []time.Time
	pacing models.Pacing
}

func (s *planService) draft(ctx context.Context, req models.PlanRequest, periodDays int) (*draft, error) {
	book, err := s.books.FetchOrCreate(ctx, req.ISBN)
	if err != nil {
		return nil, err
	}

	d := &draft{book: book, dates: []time.Time{}}
	if req.IsFreePlan {
		d.tier = s.classifier.Classify(ctx, book)
		return d, nil
	}

	dates, err := ComputeSchedule(req.StartDate.Time, periodDays, models.Times(req.ExcludeDates), req.ExcludeWeekdays)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, models.ErrScheduleParamsRequired
	}

	d.dates = dates
	d.tier = s.classifier.Classify(ctx, book)
	d.pacing = Pace(book.TotalPages, len(dates), d.tier)
	return d, nil
}

// Preview computes a schedule without persisting anything but the tier cache
func (s *planService) Preview(ctx context.Context, userID string, req models.PlanRequest) (*models.PlanPreview, error) {
	d, err := s.draft(ctx, req, req.PeriodDays)
	if err != nil {
		return nil, err
	}

	preview := &models.PlanPreview{
		Book:         d.book,
		Tier:         d.tier,
		IsFreePlan:   req.IsFreePlan,
		ReadingDates: models.Dates(d.dates),
		Pacing:       d.pacing,
	}
	if len(d.dates) > 0 {
		start, end := models.NewDate(d.dates[0]), models.NewDate(d.dates[len(d.dates)-1])
		preview.StartDate, preview.EndDate = &start, &end
	}
	return preview, nil
}

// Create always recomputes the schedule from the request parameters. An
// existing wishlist row for the book is converted in place.
func (s *planService) Create(ctx context.Context, userID string, req models.PlanRequest) (*models.Plan, error) {
	period := req.PeriodDays
	if req.UseRecommendedPlan && !req.IsFreePlan {
		if req.RecommendedPeriodDays > 0 {
			period = req.RecommendedPeriodDays
		} else {
			first, err := s.draft(ctx, req, req.PeriodDays)
			if err != nil {
				return nil, err
			}
			period = first.pacing.RecommendedDays
		}
	}

	d, err := s.draft(ctx, req, period)
	if err != nil {
		return nil, err
	}

	plan := &models.Plan{
		UserID:           userID,
		BookISBN:         d.book.ISBN,
		Status:           models.PlanStatusReading,
		IsFreePlan:       req.IsFreePlan,
		ReadingDates:     d.dates,
		ExcludedDates:    models.Times(req.ExcludeDates),
		ExcludedWeekdays: req.ExcludeWeekdays,
		DailyPages:       d.pacing.DailyPages,
		DailyMinutes:     d.pacing.DailyMinutes,
	}
	if req.IsFreePlan {
		start := models.Midnight(req.StartDate.Time)
		if start.IsZero() {
			start = s.today()
		}
		plan.StartDate = &start
		plan.ExcludedDates, plan.ExcludedWeekdays = nil, nil
	} else {
		start, end := d.dates[0], d.dates[len(d.dates)-1]
		plan.StartDate, plan.EndDate = &start, &end
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		wish, err := s.planRepo.FindWishlist(ctx, userID, plan.BookISBN)
		switch {
		case err == nil:
			plan.ID = wish.ID
			return s.planRepo.ConvertWishlist(ctx, plan)
		case errors.Is(err, models.ErrPlanNotFound):
			return s.planRepo.Create(ctx, plan)
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"plan_id": plan.ID,
		"isbn":    plan.BookISBN,
		"days":    len(plan.ReadingDates),
	}).Info("plan created")

	plan.Book = d.book
	return plan, nil
}

// owned loads a plan and hides plans of other users as not found
func (s *planService) owned(ctx context.Context, userID string, planID int64) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, models.ErrPlanNotFound
	}
	return plan, nil
}

func (s *planService) Abandon(ctx context.Context, userID string, planID int64) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		plan, err := s.planRepo.GetByIDForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if plan.UserID != userID {
			return models.ErrPlanNotFound
		}
		if plan.Status != models.PlanStatusReading {
			return models.ErrInvalidPlanStatus.WithDetail("status", plan.Status)
		}
		return s.planRepo.UpdateStatus(ctx, planID, models.PlanStatusAbandoned)
	})
}

func (s *planService) Extend(ctx context.Context, userID string, planID int64, newEndDate time.Time) (*models.Plan, error) {
	newEnd := models.Midnight(newEndDate)
	if newEnd.IsZero() {
		return nil, models.ErrFieldRequired.WithDetail("field", "end_date")
	}

	var plan *models.Plan
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.planRepo.GetByIDForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if plan.UserID != userID {
			return models.ErrPlanNotFound
		}
		if plan.IsFreePlan {
			return models.ErrInvalidPlanExtension
		}
		if plan.Status != models.PlanStatusReading {
			return models.ErrInvalidPlanStatus.WithDetail("status", plan.Status)
		}
		if plan.StartDate != nil && newEnd.Before(*plan.StartDate) {
			return fmt.Errorf("end date %s is before start date: %w", newEnd.Format(models.DateLayout), models.ErrInvalidInput)
		}
		if err := s.planRepo.UpdateEndDate(ctx, planID, newEnd); err != nil {
			return err
		}
		plan.EndDate = &newEnd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) Delete(ctx context.Context, userID string, planID int64) error {
	deleted, err := s.planRepo.Delete(ctx, userID, planID)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if !deleted {
		return models.ErrPlanNotFound
	}
	return nil
}

func (s *planService) DeleteMany(ctx context.Context, userID string, planIDs []int64) (int64, error) {
	n, err := s.planRepo.DeleteMany(ctx, userID, planIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete plans: %w", err)
	}
	return n, nil
}

func (s *planService) AddToWishlist(ctx context.Context, userID, isbn string) error {
	book, err := s.books.FetchOrCreate(ctx, isbn)
	if err != nil {
		return err
	}
	if _, err := s.planRepo.AddWishlist(ctx, userID, book.ISBN); err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return nil
}

func (s *planService) RemoveFromWishlist(ctx context.Context, userID, isbn string) error {
	if _, err := s.planRepo.RemoveWishlist(ctx, userID, utils.NormalizeISBN(isbn)); err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

func (s *planService) List(ctx context.Context, userID string) ([]*models.PlanSummary, error) {
	return s.ListByStatus(ctx, userID, "")
}

func (s *planService) ListByStatus(ctx context.Context, userID string, status models.PlanStatus) ([]*models.PlanSummary, error) {
	if status != "" && !status.Valid() {
		return nil, models.ErrInvalidPlanStatus.WithDetail("status", status)
	}
	list, err := s.planRepo.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return list, nil
}

// Today lists READING plans scheduled for the current local day
func (s *planService) Today(ctx context.Context, userID string) ([]*models.PlanSummary, error) {
	list, err := s.planRepo.ListReadingOn(ctx, userID, s.today())
	if err != nil {
		return nil, fmt.Errorf("failed to list today's plans: %w", err)
	}
	return list, nil
}

func (s *planService) ByDate(ctx context.Context, userID string, date time.Time) ([]*models.PlanSummary, error) {
	list, err := s.planRepo.ListActiveOn(ctx, userID, models.Midnight(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list plans by date: %w", err)
	}
	return list, nil
}

func (s *planService) Calendar(ctx context.Context, userID string, year int, month time.Month) ([]*models.PlanSummary, error) {
	if month < time.January || month > time.December || year < 1 {
		return nil, fmt.Errorf("invalid calendar month %d-%d: %w", year, month, models.ErrInvalidInput)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	list, err := s.planRepo.ListOverlapping(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar plans: %w", err)
	}
	return list, nil
}

func (s *planService) Detail(ctx context.Context, userID string, planID int64) (*models.PlanDetail, error) {
	plan, err := s.owned(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	book, err := s.bookRepo.GetByISBN(ctx, plan.BookISBN)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan book: %w", err)
	}
	return &models.PlanDetail{
		Plan:         plan,
		Book:         book,
		ProgressRate: models.ProgressRate(plan.CurrentPage, book.TotalPages),
	}, nil
}
