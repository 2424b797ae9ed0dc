package core

import (
	"context"
	"fmt"
	"strconv"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

// EventKind names the domain change that triggers badge evaluation
type EventKind int

const (
	EventPlanCompleted EventKind = iota + 1
	EventReadingLogCreated
	EventTimerStopped
)

func (k EventKind) String() string {
	switch k {
	case EventPlanCompleted:
		return "plan_completed"
	case EventReadingLogCreated:
		return "reading_log_created"
	case EventTimerStopped:
		return "timer_stopped"
	}
	return "unknown"
}

// Event is one evaluation trigger. ContentType is set for
// EventReadingLogCreated only.
type Event struct {
	Kind        EventKind
	ContentType models.ContentType
}

func (e Event) badgeTypes() []models.BadgeType {
	switch e.Kind {
	case EventPlanCompleted:
		return []models.BadgeType{models.BadgeTypeCategoryCount, models.BadgeTypePlanCount}
	case EventReadingLogCreated:
		return []models.BadgeType{models.BadgeTypeReadingLogCount}
	case EventTimerStopped:
		return []models.BadgeType{models.BadgeTypeTimeCount}
	}
	return nil
}

// Notifier delivers pushes. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// AchievementEvaluator awards badges whose goal the user has reached.
// Evaluate joins the transaction carried by ctx; Announce is called after
// commit with the events that were evaluated.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string, event Event) ([]*models.Badge, error)
	Announce(ctx context.Context, userID string, awarded []*models.Badge, events ...Event)
}

type achievementEvaluator struct {
	badgeRepo repository.BadgeRepository
	planRepo  repository.PlanRepository
	logRepo   repository.ReadingLogRepository
	timeRepo  repository.TimeRecordRepository
	userRepo  repository.UserRepository
	notifier  Notifier
	rankings  RankingInvalidator
}

// NewAchievementEvaluator creates an evaluator. notifier and rankings may be
// nil.
func NewAchievementEvaluator(
	badgeRepo repository.BadgeRepository,
	planRepo repository.PlanRepository,
	logRepo repository.ReadingLogRepository,
	timeRepo repository.TimeRecordRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	rankings RankingInvalidator,
) AchievementEvaluator {
	return &achievementEvaluator{
		badgeRepo: badgeRepo,
		planRepo:  planRepo,
		logRepo:   logRepo,
		timeRepo:  timeRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		rankings:  rankings,
	}
}

// staleMetrics lists the leaderboards a committed change moved. Awards
// change the level shown on every board.
func staleMetrics(awarded []*models.Badge, events []Event) []models.RankingMetric {
	if len(awarded) > 0 {
		return []models.RankingMetric{models.MetricTime, models.MetricCount, models.MetricBadge}
	}
	var out []models.RankingMetric
	for _, e := range events {
		switch e.Kind {
		case EventTimerStopped:
			out = append(out, models.MetricTime)
		case EventPlanCompleted:
			out = append(out, models.MetricCount)
		}
	}
	return out
}

func (e *achievementEvaluator) Evaluate(ctx context.Context, userID string, event Event) ([]*models.Badge, error) {
	types := event.badgeTypes()
	if len(types) == 0 {
		return nil, nil
	}

	// serializes evaluations of one user across event kinds; the count below
	// then sees every award committed before the lock was granted
	if _, err := e.userRepo.LockLevel(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to lock user level: %w", err)
	}

	defs, err := e.badgeRepo.ListByTypes(ctx, types...)
	if err != nil {
		return nil, fmt.Errorf("failed to list badge definitions: %w", err)
	}

	awarded := []*models.Badge{}
	for _, def := range defs {
		if event.Kind == EventReadingLogCreated && (def.Target == nil || *def.Target != string(event.ContentType)) {
			continue
		}

		held, err := e.badgeRepo.HasBadge(ctx, userID, def.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check badge %d: %w", def.ID, err)
		}
		if held {
			continue
		}

		value, ok, err := e.aggregate(ctx, userID, def)
		if err != nil {
			return nil, err
		}
		if !ok || value < int64(def.Goal) {
			continue
		}

		// the unique (user_id, badge_id) constraint decides races
		inserted, err := e.badgeRepo.Award(ctx, userID, def.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to award badge %d: %w", def.ID, err)
		}
		if inserted {
			awarded = append(awarded, def)
		}
	}

	if len(awarded) == 0 {
		return awarded, nil
	}

	count, err := e.badgeRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count badges: %w", err)
	}
	if _, err := e.userRepo.UpdateLevel(ctx, userID, models.LevelForBadges(count)); err != nil {
		return nil, fmt.Errorf("failed to update level: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"event":   event.Kind.String(),
		"awarded": len(awarded),
	}).Info("badges awarded")

	return awarded, nil
}

// aggregate computes the badge's metric from persisted rows. ok is false
// for definitions that cannot be evaluated.
func (e *achievementEvaluator) aggregate(ctx context.Context, userID string, def *models.Badge) (int64, bool, error) {
	target := ""
	if def.Target != nil {
		target = *def.Target
	}
	log := logger.WithFields(map[string]interface{}{"badge_id": def.ID, "target": target})

	switch def.Type {
	case models.BadgeTypeCategoryCount:
		categoryID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			log.Warn("skipping category badge with malformed target")
			return 0, false, nil
		}
		n, err := e.planRepo.CountCompletedInCategory(ctx, userID, categoryID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to count completed plans in category: %w", err)
		}
		return int64(n), true, nil

	case models.BadgeTypePlanCount:
		status := models.PlanStatus(target)
		if !status.Valid() {
			log.Warn("skipping plan badge with malformed target")
			return 0, false, nil
		}
		n, err := e.planRepo.CountByStatus(ctx, userID, status)
		if err != nil {
			return 0, false, fmt.Errorf("failed to count plans: %w", err)
		}
		return int64(n), true, nil

	case models.BadgeTypeReadingLogCount:
		contentType := models.ContentType(target)
		if !contentType.Valid() {
			log.Warn("skipping reading log badge with malformed target")
			return 0, false, nil
		}
		n, err := e.logRepo.CountByType(ctx, userID, contentType)
		if err != nil {
			return 0, false, fmt.Errorf("failed to count reading logs: %w", err)
		}
		return int64(n), true, nil

	case models.BadgeTypeTimeCount:
		minutes, err := e.timeRepo.SumMinutes(ctx, userID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to sum reading minutes: %w", err)
		}
		return minutes, true, nil
	}

	log.Warn("skipping badge of unknown type")
	return 0, false, nil
}

// Announce drops the leaderboards the events moved, then pushes one
// notification per awarded badge plus a level-up notice when the awards
// crossed a level boundary.
func (e *achievementEvaluator) Announce(ctx context.Context, userID string, awarded []*models.Badge, events ...Event) {
	if e.rankings != nil {
		if metrics := staleMetrics(awarded, events); len(metrics) > 0 {
			e.rankings.Invalidate(ctx, metrics...)
		}
	}

	if e.notifier == nil || len(awarded) == 0 {
		return
	}

	for _, b := range awarded {
		e.notifier.Notify(ctx, models.Notification{
			UserID: userID,
			Kind:   models.NotificationBadgeAwarded,
			Title:  "New badge",
			Body:   fmt.Sprintf("You earned the %q badge.", b.Name),
		})
	}

	count, err := e.badgeRepo.CountByUser(ctx, userID)
	if err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).WithError(err).Warn("failed to count badges for level notice")
		return
	}
	before := models.LevelForBadges(count - len(awarded))
	after := models.LevelForBadges(count)
	if after > before {
		e.notifier.Notify(ctx, models.Notification{
			UserID: userID,
			Kind:   models.NotificationLevelUp,
			Title:  "Level up",
			Body:   fmt.Sprintf("You reached level %d.", after),
		})
	}
}

// BadgeService answers badge catalog queries for a user
type BadgeService interface {
	AllWithStatus(ctx context.Context, userID string) ([]*models.BadgeStatus, error)
	ByTypeWithStatus(ctx context.Context, userID string, badgeType models.BadgeType) ([]*models.BadgeStatus, error)
	Mine(ctx context.Context, userID string) ([]*models.BadgeStatus, error)
	Stats(ctx context.Context, userID string) (*models.UserStats, error)
}

type badgeService struct {
	badgeRepo repository.BadgeRepository
	userRepo  repository.UserRepository
}

// NewBadgeService creates a new badge query service
func NewBadgeService(badgeRepo repository.BadgeRepository, userRepo repository.UserRepository) BadgeService {
	return &badgeService{badgeRepo: badgeRepo, userRepo: userRepo}
}

func (s *badgeService) AllWithStatus(ctx context.Context, userID string) ([]*models.BadgeStatus, error) {
	return s.ByTypeWithStatus(ctx, userID, "")
}

func (s *badgeService) ByTypeWithStatus(ctx context.Context, userID string, badgeType models.BadgeType) ([]*models.BadgeStatus, error) {
	if badgeType != "" && !badgeType.Valid() {
		return nil, fmt.Errorf("unknown badge type %q: %w", badgeType, models.ErrInvalidInput)
	}
	list, err := s.badgeRepo.ListWithStatus(ctx, userID, badgeType)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return list, nil
}

func (s *badgeService) Mine(ctx context.Context, userID string) ([]*models.BadgeStatus, error) {
	list, err := s.badgeRepo.ListAcquired(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acquired badges: %w", err)
	}
	return list, nil
}

// Stats returns the stored level and the badge count it derives from
func (s *badgeService) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	count, err := s.badgeRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count badges: %w", err)
	}
	return &models.UserStats{UserID: user.ID, Level: user.Level, BadgeCount: count}, nil
}
