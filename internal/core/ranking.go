package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

// DefaultLeaderboardSize is the number of rows a leaderboard returns
const DefaultLeaderboardSize = 50

// RankingService computes windowed leaderboards. Results are derived on
// every call; the Redis cache only shortens repeated reads and is dropped
// whenever a committed change moves a metric.
type RankingService interface {
	RankingInvalidator
	Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error)
	MyRanking(ctx context.Context, userID string, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error)
}

// RankingInvalidator drops cached leaderboards of the current windows
type RankingInvalidator interface {
	Invalidate(ctx context.Context, metrics ...models.RankingMetric)
}

type rankingService struct {
	rankingRepo repository.RankingRepository
	userRepo    repository.UserRepository
	cache       redis.Cmdable
	cacheTTL    time.Duration
	limit       int
	loc         *time.Location
	now         func() time.Time
}

// RankingOptions tunes the ranking service. A nil Cache disables caching.
type RankingOptions struct {
	Cache    redis.Cmdable
	CacheTTL time.Duration
	Limit    int
	Location *time.Location
}

// NewRankingService creates a new ranking service
func NewRankingService(rankingRepo repository.RankingRepository, userRepo repository.UserRepository, opts RankingOptions) RankingService {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLeaderboardSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &rankingService{
		rankingRepo: rankingRepo,
		userRepo:    userRepo,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		limit:       opts.Limit,
		loc:         opts.Location,
		now:         time.Now,
	}
}

// WindowStart is 00:00 local time on the first day of the month or year
// containing now.
func WindowStart(scope models.RankingScope, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	if scope == models.ScopeYear {
		return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// Percentile is rank/total as a percentage rounded to one decimal. Users
// without a rank sit at 100.
func Percentile(rank, total int) float64 {
	if rank <= 0 || total <= 0 {
		return 100.0
	}
	return math.Round(float64(rank)/float64(total)*1000) / 10
}

func cacheKey(metric models.RankingMetric, scope models.RankingScope, since time.Time) string {
	return fmt.Sprintf("ranking:%s:%s:%s", metric, scope, since.Format(models.DateLayout))
}

func (s *rankingService) Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error) {
	since := WindowStart(scope, s.now(), s.loc)
	key := cacheKey(metric, scope, since)

	if entries, ok := s.cached(ctx, key); ok {
		return entries, nil
	}

	rows, err := s.rankingRepo.Top(ctx, metric, since, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}

	entries := make([]models.RankingEntry, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, models.RankingEntry{
			Rank:         i + 1,
			UserID:       r.UserID,
			Nickname:     r.Nickname,
			ProfileImage: r.ProfileImage,
			Level:        r.Level,
			RawValue:     r.Value,
			Value:        metric.FormatValue(r.Value),
		})
	}

	s.store(ctx, key, entries)
	return entries, nil
}

func (s *rankingService) MyRanking(ctx context.Context, userID string, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	since := WindowStart(scope, s.now(), s.loc)
	pos, err := s.rankingRepo.PositionOf(ctx, userID, metric, since)
	if err != nil {
		return nil, fmt.Errorf("failed to locate user ranking: %w", err)
	}

	mine := &models.MyRanking{
		UserID:       user.ID,
		Nickname:     user.Nickname,
		ProfileImage: user.ProfileImage,
		Level:        user.Level,
		Rank:         pos.Rank,
		Total:        pos.Total,
		Value:        models.NoRankValue,
		Percentile:   Percentile(pos.Rank, pos.Total),
	}
	if pos.Rank > 0 {
		mine.Value = metric.FormatValue(pos.Value)
	} else {
		mine.Rank = -1
	}
	return mine, nil
}

// Invalidate removes the month and year leaderboards of metrics for the
// current windows. Failures are logged; the TTL bounds what survives.
func (s *rankingService) Invalidate(ctx context.Context, metrics ...models.RankingMetric) {
	if s.cache == nil || len(metrics) == 0 {
		return
	}
	now := s.now()
	keys := make([]string, 0, len(metrics)*2)
	for _, metric := range metrics {
		for _, scope := range []models.RankingScope{models.ScopeMonth, models.ScopeYear} {
			keys = append(keys, cacheKey(metric, scope, WindowStart(scope, now, s.loc)))
		}
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		logger.WithFields(map[string]interface{}{"keys": keys}).WithError(err).Debug("ranking cache invalidation failed")
	}
}

func (s *rankingService) cached(ctx context.Context, key string) ([]models.RankingEntry, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.WithFields(map[string]interface{}{"key": key}).WithError(err).Debug("ranking cache read failed")
		}
		return nil, false
	}
	var entries []models.RankingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *rankingService) store(ctx context.Context, key string, entries []models.RankingEntry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		logger.WithFields(map[string]interface{}{"key": key}).WithError(err).Debug("ranking cache write failed")
	}
}
