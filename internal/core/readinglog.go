package core

import (
	"context"
	"fmt"

	"booktrack/internal/repository"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

const (
	defaultScrapPageSize = 10
	maxScrapPageSize     = 50
)

// ReadingLogService stores reviews and scraps. Editing or deleting a log
// never revokes a badge already earned from it.
type ReadingLogService interface {
	Create(ctx context.Context, userID string, planID int64, contentType models.ContentType, content, imageURL string) (*models.ReadingLogResult, error)
	Get(ctx context.Context, userID string, logID int64) (*models.ReadingLog, error)
	Update(ctx context.Context, userID string, logID int64, content string) (*models.ReadingLog, error)
	Delete(ctx context.Context, userID string, logID int64) error
	DeleteMany(ctx context.Context, userID string, logIDs []int64) (int64, error)
	ListByPlan(ctx context.Context, userID string, planID int64, contentType models.ContentType) ([]*models.ReadingLog, error)
	Scraps(ctx context.Context, userID string, page, size int) ([]*models.Scrap, error)
	ScrapsByBook(ctx context.Context, userID string, order models.ScrapOrder) ([]*models.ScrapBook, error)
}

type readingLogService struct {
	logRepo   repository.ReadingLogRepository
	planRepo  repository.PlanRepository
	tx        repository.Transactor
	evaluator AchievementEvaluator
}

// NewReadingLogService creates a new reading log service
func NewReadingLogService(
	logRepo repository.ReadingLogRepository,
	planRepo repository.PlanRepository,
	tx repository.Transactor,
	evaluator AchievementEvaluator,
) ReadingLogService {
	return &readingLogService{
		logRepo:   logRepo,
		planRepo:  planRepo,
		tx:        tx,
		evaluator: evaluator,
	}
}

func (s *readingLogService) ownedPlan(ctx context.Context, userID string, planID int64) error {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if plan.UserID != userID {
		return models.ErrPlanNotOwned
	}
	return nil
}

func (s *readingLogService) Create(ctx context.Context, userID string, planID int64, contentType models.ContentType, content, imageURL string) (*models.ReadingLogResult, error) {
	if utils.IsBlank(content) {
		return nil, models.ErrFieldRequired.WithDetail("field", "content")
	}
	if !contentType.Valid() {
		return nil, models.ErrInvalidContentType
	}

	var result *models.ReadingLogResult
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.ownedPlan(ctx, userID, planID); err != nil {
			return err
		}

		log := &models.ReadingLog{
			UserID:      userID,
			PlanID:      planID,
			ContentType: contentType,
			Content:     content,
			ImageURL:    imageURL,
		}
		if err := s.logRepo.Create(ctx, log); err != nil {
			return fmt.Errorf("failed to create reading log: %w", err)
		}

		awarded, err := s.evaluator.Evaluate(ctx, userID, Event{Kind: EventReadingLogCreated, ContentType: contentType})
		if err != nil {
			return err
		}
		result = &models.ReadingLogResult{Log: log, NewBadges: awarded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.evaluator.Announce(ctx, userID, result.NewBadges, Event{Kind: EventReadingLogCreated, ContentType: contentType})
	return result, nil
}

// ListByPlan lists a plan's logs; an empty content type lists both kinds
func (s *readingLogService) ListByPlan(ctx context.Context, userID string, planID int64, contentType models.ContentType) ([]*models.ReadingLog, error) {
	if contentType != "" && !contentType.Valid() {
		return nil, models.ErrInvalidContentType
	}
	if err := s.ownedPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListByPlan(ctx, planID, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading logs: %w", err)
	}
	return logs, nil
}

// Get returns one of the user's logs; other users' logs are not found
func (s *readingLogService) Get(ctx context.Context, userID string, logID int64) (*models.ReadingLog, error) {
	log, err := s.logRepo.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.UserID != userID {
		return nil, models.ErrLogNotFound
	}
	return log, nil
}

func (s *readingLogService) Update(ctx context.Context, userID string, logID int64, content string) (*models.ReadingLog, error) {
	if utils.IsBlank(content) {
		return nil, models.ErrFieldRequired.WithDetail("field", "content")
	}
	log, err := s.logRepo.UpdateContent(ctx, userID, logID, content)
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (s *readingLogService) Delete(ctx context.Context, userID string, logID int64) error {
	deleted, err := s.logRepo.Delete(ctx, userID, logID)
	if err != nil {
		return fmt.Errorf("failed to delete reading log: %w", err)
	}
	if !deleted {
		return models.ErrLogNotFound
	}
	return nil
}

// DeleteMany deletes the user's logs among logIDs and reports how many went
func (s *readingLogService) DeleteMany(ctx context.Context, userID string, logIDs []int64) (int64, error) {
	if len(logIDs) == 0 {
		return 0, models.ErrFieldRequired.WithDetail("field", "log_ids")
	}
	n, err := s.logRepo.DeleteMany(ctx, userID, logIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reading logs: %w", err)
	}
	return n, nil
}

// Scraps pages through the user's scraps, newest first. page starts at 0.
func (s *readingLogService) Scraps(ctx context.Context, userID string, page, size int) ([]*models.Scrap, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultScrapPageSize
	}
	if size > maxScrapPageSize {
		size = maxScrapPageSize
	}
	scraps, err := s.logRepo.ListScraps(ctx, userID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraps: %w", err)
	}
	return scraps, nil
}

func (s *readingLogService) ScrapsByBook(ctx context.Context, userID string, order models.ScrapOrder) ([]*models.ScrapBook, error) {
	books, err := s.logRepo.ScrapsByBook(ctx, userID, order)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise scraps: %w", err)
	}
	return books, nil
}
