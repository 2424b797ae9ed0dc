package core

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"booktrack/internal/repository"
	"booktrack/pkg/models"
)

type mockPlanRepo struct{ mock.Mock }

func (m *mockPlanRepo) Create(ctx context.Context, plan *models.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Plan)
	return p, args.Error(1)
}

func (m *mockPlanRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Plan)
	return p, args.Error(1)
}

func (m *mockPlanRepo) FindWishlist(ctx context.Context, userID, isbn string) (*models.Plan, error) {
	args := m.Called(ctx, userID, isbn)
	p, _ := args.Get(0).(*models.Plan)
	return p, args.Error(1)
}

func (m *mockPlanRepo) ConvertWishlist(ctx context.Context, plan *models.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *mockPlanRepo) AddWishlist(ctx context.Context, userID, isbn string) (bool, error) {
	args := m.Called(ctx, userID, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *mockPlanRepo) RemoveWishlist(ctx context.Context, userID, isbn string) (bool, error) {
	args := m.Called(ctx, userID, isbn)
	return args.Bool(0), args.Error(1)
}

func (m *mockPlanRepo) UpdateStatus(ctx context.Context, id int64, status models.PlanStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockPlanRepo) UpdateEndDate(ctx context.Context, id int64, endDate time.Time) error {
	return m.Called(ctx, id, endDate).Error(0)
}

func (m *mockPlanRepo) UpdateProgress(ctx context.Context, id int64, currentPage int, status models.PlanStatus) error {
	return m.Called(ctx, id, currentPage, status).Error(0)
}

func (m *mockPlanRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockPlanRepo) DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPlanRepo) summaries(args mock.Arguments) ([]*models.PlanSummary, error) {
	list, _ := args.Get(0).([]*models.PlanSummary)
	return list, args.Error(1)
}

func (m *mockPlanRepo) ListByUser(ctx context.Context, userID string, status models.PlanStatus) ([]*models.PlanSummary, error) {
	return m.summaries(m.Called(ctx, userID, status))
}

func (m *mockPlanRepo) ListReadingOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error) {
	return m.summaries(m.Called(ctx, userID, day))
}

func (m *mockPlanRepo) ListActiveOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error) {
	return m.summaries(m.Called(ctx, userID, day))
}

func (m *mockPlanRepo) ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]*models.PlanSummary, error) {
	return m.summaries(m.Called(ctx, userID, from, to))
}

func (m *mockPlanRepo) ListReminderTargets(ctx context.Context, day time.Time) ([]repository.ReminderTarget, error) {
	args := m.Called(ctx, day)
	list, _ := args.Get(0).([]repository.ReminderTarget)
	return list, args.Error(1)
}

func (m *mockPlanRepo) CountByStatus(ctx context.Context, userID string, status models.PlanStatus) (int, error) {
	args := m.Called(ctx, userID, status)
	return args.Int(0), args.Error(1)
}

func (m *mockPlanRepo) CountCompletedInCategory(ctx context.Context, userID string, categoryID int64) (int, error) {
	args := m.Called(ctx, userID, categoryID)
	return args.Int(0), args.Error(1)
}

type mockBookRepo struct{ mock.Mock }

func (m *mockBookRepo) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	args := m.Called(ctx, isbn)
	b, _ := args.Get(0).(*models.Book)
	return b, args.Error(1)
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookRepo) UpdateDifficulty(ctx context.Context, isbn string, tier models.Tier) error {
	return m.Called(ctx, isbn, tier).Error(0)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) LockLevel(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) UpdateLevel(ctx context.Context, id string, level int) (bool, error) {
	args := m.Called(ctx, id, level)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) DeviceTokens(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).([]string)
	return t, args.Error(1)
}

func (m *mockUserRepo) AddDeviceToken(ctx context.Context, id, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

type mockTimeRepo struct{ mock.Mock }

func (m *mockTimeRepo) Start(ctx context.Context, userID string, planID int64, startTime time.Time) (*models.TimeRecord, error) {
	args := m.Called(ctx, userID, planID, startTime)
	r, _ := args.Get(0).(*models.TimeRecord)
	return r, args.Error(1)
}

func (m *mockTimeRepo) FindOpen(ctx context.Context, userID string) (*models.TimeRecord, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.TimeRecord)
	return r, args.Error(1)
}

func (m *mockTimeRepo) LockOpen(ctx context.Context, userID string) (*models.TimeRecord, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.TimeRecord)
	return r, args.Error(1)
}

func (m *mockTimeRepo) Close(ctx context.Context, id int64, endTime time.Time, minutes int) error {
	return m.Called(ctx, id, endTime, minutes).Error(0)
}

func (m *mockTimeRepo) SumMinutes(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTimeRepo) PlanSeconds(ctx context.Context, planID int64, from, to time.Time) (int64, int64, error) {
	args := m.Called(ctx, planID, from, to)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockTimeRepo) ListByPlanBetween(ctx context.Context, planID int64, from, to time.Time) ([]*models.TimeRecord, error) {
	args := m.Called(ctx, planID, from, to)
	r, _ := args.Get(0).([]*models.TimeRecord)
	return r, args.Error(1)
}

func (m *mockTimeRepo) DailyMinutes(ctx context.Context, userID string, from, to time.Time, loc *time.Location) (map[string]int, error) {
	args := m.Called(ctx, userID, from, to, loc)
	d, _ := args.Get(0).(map[string]int)
	return d, args.Error(1)
}

type mockLogRepo struct{ mock.Mock }

func (m *mockLogRepo) Create(ctx context.Context, log *models.ReadingLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockLogRepo) GetByID(ctx context.Context, id int64) (*models.ReadingLog, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(*models.ReadingLog)
	return l, args.Error(1)
}

func (m *mockLogRepo) UpdateContent(ctx context.Context, userID string, id int64, content string) (*models.ReadingLog, error) {
	args := m.Called(ctx, userID, id, content)
	l, _ := args.Get(0).(*models.ReadingLog)
	return l, args.Error(1)
}

func (m *mockLogRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockLogRepo) DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error) {
	args := m.Called(ctx, userID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLogRepo) ListScraps(ctx context.Context, userID string, limit, offset int) ([]*models.Scrap, error) {
	args := m.Called(ctx, userID, limit, offset)
	l, _ := args.Get(0).([]*models.Scrap)
	return l, args.Error(1)
}

func (m *mockLogRepo) ScrapsByBook(ctx context.Context, userID string, order models.ScrapOrder) ([]*models.ScrapBook, error) {
	args := m.Called(ctx, userID, order)
	l, _ := args.Get(0).([]*models.ScrapBook)
	return l, args.Error(1)
}

func (m *mockLogRepo) ListByPlan(ctx context.Context, planID int64, contentType models.ContentType) ([]*models.ReadingLog, error) {
	args := m.Called(ctx, planID, contentType)
	l, _ := args.Get(0).([]*models.ReadingLog)
	return l, args.Error(1)
}

func (m *mockLogRepo) CountByType(ctx context.Context, userID string, contentType models.ContentType) (int, error) {
	args := m.Called(ctx, userID, contentType)
	return args.Int(0), args.Error(1)
}

type mockBadgeRepo struct{ mock.Mock }

func (m *mockBadgeRepo) ListByTypes(ctx context.Context, types ...models.BadgeType) ([]*models.Badge, error) {
	args := m.Called(ctx, types)
	b, _ := args.Get(0).([]*models.Badge)
	return b, args.Error(1)
}

func (m *mockBadgeRepo) HasBadge(ctx context.Context, userID string, badgeID int64) (bool, error) {
	args := m.Called(ctx, userID, badgeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBadgeRepo) Award(ctx context.Context, userID string, badgeID int64) (bool, error) {
	args := m.Called(ctx, userID, badgeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBadgeRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockBadgeRepo) ListWithStatus(ctx context.Context, userID string, badgeType models.BadgeType) ([]*models.BadgeStatus, error) {
	args := m.Called(ctx, userID, badgeType)
	b, _ := args.Get(0).([]*models.BadgeStatus)
	return b, args.Error(1)
}

func (m *mockBadgeRepo) ListAcquired(ctx context.Context, userID string) ([]*models.BadgeStatus, error) {
	args := m.Called(ctx, userID)
	b, _ := args.Get(0).([]*models.BadgeStatus)
	return b, args.Error(1)
}

type mockRankingRepo struct{ mock.Mock }

func (m *mockRankingRepo) Top(ctx context.Context, metric models.RankingMetric, since time.Time, limit int) ([]repository.RankedUser, error) {
	args := m.Called(ctx, metric, since, limit)
	r, _ := args.Get(0).([]repository.RankedUser)
	return r, args.Error(1)
}

func (m *mockRankingRepo) PositionOf(ctx context.Context, userID string, metric models.RankingMetric, since time.Time) (*repository.Position, error) {
	args := m.Called(ctx, userID, metric, since)
	p, _ := args.Get(0).(*repository.Position)
	return p, args.Error(1)
}

type mockEvaluator struct {
	mock.Mock
	mu        sync.Mutex
	announced []Event
}

func (m *mockEvaluator) Evaluate(ctx context.Context, userID string, event Event) ([]*models.Badge, error) {
	args := m.Called(ctx, userID, event)
	b, _ := args.Get(0).([]*models.Badge)
	return b, args.Error(1)
}

// Announce records the events separately so expectations can stay on the
// awarded badges
func (m *mockEvaluator) Announce(ctx context.Context, userID string, awarded []*models.Badge, events ...Event) {
	m.Called(ctx, userID, awarded)
	m.mu.Lock()
	m.announced = append(m.announced, events...)
	m.mu.Unlock()
}

type mockBookService struct{ mock.Mock }

func (m *mockBookService) FetchOrCreate(ctx context.Context, isbn string) (*models.Book, error) {
	args := m.Called(ctx, isbn)
	b, _ := args.Get(0).(*models.Book)
	return b, args.Error(1)
}

func (m *mockBookService) Search(ctx context.Context, query string, limit int) ([]*models.Book, error) {
	args := m.Called(ctx, query, limit)
	b, _ := args.Get(0).([]*models.Book)
	return b, args.Error(1)
}

type fixedClassifier models.Tier

func (f fixedClassifier) Classify(context.Context, *models.Book) models.Tier {
	return models.Tier(f)
}

// fakeTx runs fn directly and records whether it committed
type fakeTx struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.rollbacks++
	} else {
		t.commits++
	}
	return err
}

// recordingInvalidator collects the metrics whose cache was dropped
type recordingInvalidator struct {
	mu      sync.Mutex
	metrics []models.RankingMetric
}

func (r *recordingInvalidator) Invalidate(_ context.Context, metrics ...models.RankingMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, metrics...)
}

func (r *recordingInvalidator) dropped() []models.RankingMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RankingMetric(nil), r.metrics...)
}

// recordingNotifier collects notifications
type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func strPtr(s string) *string { return &s }

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
