package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booktrack/pkg/models"
)

type evaluatorDeps struct {
	badges   *mockBadgeRepo
	plans    *mockPlanRepo
	logs     *mockLogRepo
	times    *mockTimeRepo
	users    *mockUserRepo
	notifier *recordingNotifier
	rankings *recordingInvalidator
}

func newEvaluatorDeps() *evaluatorDeps {
	return &evaluatorDeps{
		badges:   &mockBadgeRepo{},
		plans:    &mockPlanRepo{},
		logs:     &mockLogRepo{},
		times:    &mockTimeRepo{},
		users:    &mockUserRepo{},
		notifier: &recordingNotifier{},
		rankings: &recordingInvalidator{},
	}
}

func (d *evaluatorDeps) evaluator() AchievementEvaluator {
	d.users.On("LockLevel", mock.Anything, mock.Anything).Return(1, nil).Maybe()
	return NewAchievementEvaluator(d.badges, d.plans, d.logs, d.times, d.users, d.notifier, d.rankings)
}

var planCompletedTypes = []models.BadgeType{models.BadgeTypeCategoryCount, models.BadgeTypePlanCount}

func TestEvaluateCategoryBadge(t *testing.T) {
	tests := []struct {
		name        string
		badgesAfter int
		wantLevel   int
	}{
		{name: "odd count keeps level", badgesAfter: 3, wantLevel: 2},
		{name: "even count raises level", badgesAfter: 4, wantLevel: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newEvaluatorDeps()
			fiction := &models.Badge{ID: 3, Name: "Fiction lover", Type: models.BadgeTypeCategoryCount, Target: strPtr("1"), Goal: 5}

			d.badges.On("ListByTypes", mock.Anything, planCompletedTypes).Return([]*models.Badge{fiction}, nil)
			d.badges.On("HasBadge", mock.Anything, "u1", int64(3)).Return(false, nil)
			d.plans.On("CountCompletedInCategory", mock.Anything, "u1", int64(1)).Return(5, nil)
			d.badges.On("Award", mock.Anything, "u1", int64(3)).Return(true, nil).Once()
			d.badges.On("CountByUser", mock.Anything, "u1").Return(tt.badgesAfter, nil)
			d.users.On("UpdateLevel", mock.Anything, "u1", tt.wantLevel).Return(tt.badgesAfter%2 == 0, nil)

			awarded, err := d.evaluator().Evaluate(context.Background(), "u1", Event{Kind: EventPlanCompleted})
			require.NoError(t, err)
			require.Len(t, awarded, 1)
			assert.Equal(t, int64(3), awarded[0].ID)

			d.badges.AssertExpectations(t)
			d.users.AssertExpectations(t)
		})
	}
}

func TestEvaluateBelowGoalAwardsNothing(t *testing.T) {
	d := newEvaluatorDeps()
	firstBook := &models.Badge{ID: 5, Type: models.BadgeTypePlanCount, Target: strPtr("COMPLETED"), Goal: 10}

	d.badges.On("ListByTypes", mock.Anything, planCompletedTypes).Return([]*models.Badge{firstBook}, nil)
	d.badges.On("HasBadge", mock.Anything, "u1", int64(5)).Return(false, nil)
	d.plans.On("CountByStatus", mock.Anything, "u1", models.PlanStatusCompleted).Return(9, nil)

	awarded, err := d.evaluator().Evaluate(context.Background(), "u1", Event{Kind: EventPlanCompleted})
	require.NoError(t, err)
	assert.Empty(t, awarded)

	d.badges.AssertNotCalled(t, "Award", mock.Anything, mock.Anything, mock.Anything)
	d.users.AssertNotCalled(t, "UpdateLevel", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	d := newEvaluatorDeps()
	hours := &models.Badge{ID: 9, Type: models.BadgeTypeTimeCount, Goal: 600}
	timeTypes := []models.BadgeType{models.BadgeTypeTimeCount}

	d.badges.On("ListByTypes", mock.Anything, timeTypes).Return([]*models.Badge{hours}, nil)
	// fast path: already held
	d.badges.On("HasBadge", mock.Anything, "held", int64(9)).Return(true, nil)
	// race: the existence check passed but the insert conflicted
	d.badges.On("HasBadge", mock.Anything, "raced", int64(9)).Return(false, nil)
	d.times.On("SumMinutes", mock.Anything, "raced").Return(int64(720), nil)
	d.badges.On("Award", mock.Anything, "raced", int64(9)).Return(false, nil)

	ev := d.evaluator()
	for _, user := range []string{"held", "raced"} {
		awarded, err := ev.Evaluate(context.Background(), user, Event{Kind: EventTimerStopped})
		require.NoError(t, err, user)
		assert.Empty(t, awarded, user)
	}

	d.badges.AssertNotCalled(t, "Award", mock.Anything, "held", mock.Anything)
	d.users.AssertNotCalled(t, "UpdateLevel", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateReadingLogMatchesTarget(t *testing.T) {
	d := newEvaluatorDeps()
	reviewer := &models.Badge{ID: 7, Type: models.BadgeTypeReadingLogCount, Target: strPtr("REVIEW"), Goal: 1}
	scrapper := &models.Badge{ID: 8, Type: models.BadgeTypeReadingLogCount, Target: strPtr("SCRAP"), Goal: 1}
	logTypes := []models.BadgeType{models.BadgeTypeReadingLogCount}

	d.badges.On("ListByTypes", mock.Anything, logTypes).Return([]*models.Badge{reviewer, scrapper}, nil)
	d.badges.On("HasBadge", mock.Anything, "u1", int64(8)).Return(false, nil)
	d.logs.On("CountByType", mock.Anything, "u1", models.ContentTypeScrap).Return(1, nil)
	d.badges.On("Award", mock.Anything, "u1", int64(8)).Return(true, nil)
	d.badges.On("CountByUser", mock.Anything, "u1").Return(1, nil)
	d.users.On("UpdateLevel", mock.Anything, "u1", 1).Return(false, nil)

	awarded, err := d.evaluator().Evaluate(context.Background(), "u1",
		Event{Kind: EventReadingLogCreated, ContentType: models.ContentTypeScrap})
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, int64(8), awarded[0].ID)

	d.badges.AssertNotCalled(t, "HasBadge", mock.Anything, "u1", int64(7))
}

func TestEvaluateSkipsMalformedTarget(t *testing.T) {
	d := newEvaluatorDeps()
	broken := &models.Badge{ID: 11, Type: models.BadgeTypeCategoryCount, Target: strPtr("fiction"), Goal: 1}

	d.badges.On("ListByTypes", mock.Anything, planCompletedTypes).Return([]*models.Badge{broken}, nil)
	d.badges.On("HasBadge", mock.Anything, "u1", int64(11)).Return(false, nil)

	awarded, err := d.evaluator().Evaluate(context.Background(), "u1", Event{Kind: EventPlanCompleted})
	require.NoError(t, err)
	assert.Empty(t, awarded)
	d.plans.AssertNotCalled(t, "CountCompletedInCategory", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateLocksUserBeforeCounting(t *testing.T) {
	badges, users, times := &mockBadgeRepo{}, &mockUserRepo{}, &mockTimeRepo{}
	hours := &models.Badge{ID: 9, Type: models.BadgeTypeTimeCount, Goal: 600}

	badges.On("HasBadge", mock.Anything, "u1", int64(9)).Return(false, nil)
	times.On("SumMinutes", mock.Anything, "u1").Return(int64(600), nil)
	mock.InOrder(
		users.On("LockLevel", mock.Anything, "u1").Return(2, nil).Once(),
		badges.On("ListByTypes", mock.Anything, []models.BadgeType{models.BadgeTypeTimeCount}).Return([]*models.Badge{hours}, nil).Once(),
		badges.On("Award", mock.Anything, "u1", int64(9)).Return(true, nil).Once(),
		badges.On("CountByUser", mock.Anything, "u1").Return(4, nil).Once(),
		users.On("UpdateLevel", mock.Anything, "u1", 3).Return(true, nil).Once(),
	)

	ev := NewAchievementEvaluator(badges, &mockPlanRepo{}, &mockLogRepo{}, times, users, nil, nil)
	awarded, err := ev.Evaluate(context.Background(), "u1", Event{Kind: EventTimerStopped})
	require.NoError(t, err)
	assert.Len(t, awarded, 1)

	badges.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestEvaluateLockFailureAwardsNothing(t *testing.T) {
	badges, users := &mockBadgeRepo{}, &mockUserRepo{}
	users.On("LockLevel", mock.Anything, "ghost").Return(0, models.ErrUserNotFound)

	ev := NewAchievementEvaluator(badges, &mockPlanRepo{}, &mockLogRepo{}, &mockTimeRepo{}, users, nil, nil)
	_, err := ev.Evaluate(context.Background(), "ghost", Event{Kind: EventTimerStopped})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	badges.AssertNotCalled(t, "ListByTypes", mock.Anything, mock.Anything)
}

// badgeLedger is an in-memory stand-in for user_badges and users.level with
// read-committed visibility: a transaction sees committed awards plus its
// own. The users row lock is a mutex released when the transaction ends.
type badgeLedger struct {
	mu      sync.Mutex
	held    map[int64]bool
	level   int
	rowLock sync.Mutex

	awards      int
	bothAwarded chan struct{}
}

type ledgerTxKey struct{}

type ledgerTx struct {
	awards   []int64
	level    int
	setLevel bool
	locks    []*sync.Mutex
}

func ledgerTxFrom(ctx context.Context) *ledgerTx {
	return ctx.Value(ledgerTxKey{}).(*ledgerTx)
}

func (l *badgeLedger) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := &ledgerTx{}
	err := fn(context.WithValue(ctx, ledgerTxKey{}, tx))

	l.mu.Lock()
	if err == nil {
		for _, id := range tx.awards {
			l.held[id] = true
		}
		if tx.setLevel {
			l.level = tx.level
		}
	}
	l.mu.Unlock()

	for _, m := range tx.locks {
		m.Unlock()
	}
	return err
}

type ledgerBadges struct {
	*mockBadgeRepo
	l *badgeLedger
}

func (b ledgerBadges) ListByTypes(_ context.Context, types ...models.BadgeType) ([]*models.Badge, error) {
	switch types[0] {
	case models.BadgeTypeTimeCount:
		return []*models.Badge{{ID: 9, Name: "Ten hours", Type: models.BadgeTypeTimeCount, Goal: 600}}, nil
	case models.BadgeTypeReadingLogCount:
		return []*models.Badge{{ID: 7, Name: "Reviewer", Type: models.BadgeTypeReadingLogCount, Target: strPtr("REVIEW"), Goal: 1}}, nil
	}
	return nil, nil
}

func (b ledgerBadges) HasBadge(ctx context.Context, _ string, badgeID int64) (bool, error) {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	for _, id := range ledgerTxFrom(ctx).awards {
		if id == badgeID {
			return true, nil
		}
	}
	return b.l.held[badgeID], nil
}

// Award waits briefly for the other transaction's award so that, without
// a per-user lock, both transactions count before either commits.
func (b ledgerBadges) Award(ctx context.Context, _ string, badgeID int64) (bool, error) {
	tx := ledgerTxFrom(ctx)
	tx.awards = append(tx.awards, badgeID)

	b.l.mu.Lock()
	b.l.awards++
	if b.l.awards == 2 {
		close(b.l.bothAwarded)
	}
	b.l.mu.Unlock()

	select {
	case <-b.l.bothAwarded:
	case <-time.After(100 * time.Millisecond):
	}
	return true, nil
}

func (b ledgerBadges) CountByUser(ctx context.Context, _ string) (int, error) {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	return len(b.l.held) + len(ledgerTxFrom(ctx).awards), nil
}

type ledgerUsers struct {
	*mockUserRepo
	l *badgeLedger
}

func (u ledgerUsers) LockLevel(ctx context.Context, _ string) (int, error) {
	u.l.rowLock.Lock()
	tx := ledgerTxFrom(ctx)
	tx.locks = append(tx.locks, &u.l.rowLock)

	u.l.mu.Lock()
	defer u.l.mu.Unlock()
	return u.l.level, nil
}

func (u ledgerUsers) UpdateLevel(ctx context.Context, _ string, level int) (bool, error) {
	tx := ledgerTxFrom(ctx)
	tx.level, tx.setLevel = level, true
	return true, nil
}

func TestEvaluateConcurrentEventKindsKeepLevelInSync(t *testing.T) {
	ledger := &badgeLedger{
		held:        map[int64]bool{1: true, 2: true},
		level:       2,
		bothAwarded: make(chan struct{}),
	}
	times, logs := &mockTimeRepo{}, &mockLogRepo{}
	times.On("SumMinutes", mock.Anything, "u1").Return(int64(600), nil)
	logs.On("CountByType", mock.Anything, "u1", models.ContentTypeReview).Return(1, nil)

	ev := NewAchievementEvaluator(
		ledgerBadges{&mockBadgeRepo{}, ledger}, &mockPlanRepo{}, logs, times,
		ledgerUsers{&mockUserRepo{}, ledger}, nil, nil,
	)

	events := []Event{
		{Kind: EventTimerStopped},
		{Kind: EventReadingLogCreated, ContentType: models.ContentTypeReview},
	}
	errs := make(chan error, len(events))
	var wg sync.WaitGroup
	for _, event := range events {
		wg.Add(1)
		go func(event Event) {
			defer wg.Done()
			errs <- ledger.WithTransaction(context.Background(), func(ctx context.Context) error {
				_, err := ev.Evaluate(ctx, "u1", event)
				return err
			})
		}(event)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, ledger.held, 4)
	assert.Equal(t, models.LevelForBadges(4), ledger.level)
}

func TestAnnounceLevelUp(t *testing.T) {
	d := newEvaluatorDeps()
	d.badges.On("CountByUser", mock.Anything, "u1").Return(2, nil)

	awarded := []*models.Badge{{ID: 1, Name: "First steps"}}
	d.evaluator().Announce(context.Background(), "u1", awarded)

	assert.Equal(t, []models.NotificationKind{models.NotificationBadgeAwarded, models.NotificationLevelUp}, d.notifier.kinds())
}

func TestAnnounceWithoutLevelChange(t *testing.T) {
	d := newEvaluatorDeps()
	d.badges.On("CountByUser", mock.Anything, "u1").Return(3, nil)

	d.evaluator().Announce(context.Background(), "u1", []*models.Badge{{ID: 2, Name: "Reviewer"}})
	assert.Equal(t, []models.NotificationKind{models.NotificationBadgeAwarded}, d.notifier.kinds())

	d.evaluator().Announce(context.Background(), "u1", nil)
	assert.Len(t, d.notifier.kinds(), 1)
}

func TestAnnounceDropsMovedLeaderboards(t *testing.T) {
	tests := []struct {
		name    string
		awarded []*models.Badge
		events  []Event
		want    []models.RankingMetric
	}{
		{
			name:   "timer stop without award",
			events: []Event{{Kind: EventTimerStopped}},
			want:   []models.RankingMetric{models.MetricTime},
		},
		{
			name:   "plan completed by the final session",
			events: []Event{{Kind: EventTimerStopped}, {Kind: EventPlanCompleted}},
			want:   []models.RankingMetric{models.MetricTime, models.MetricCount},
		},
		{
			name:    "award moves every board",
			awarded: []*models.Badge{{ID: 3, Name: "Reviewer"}},
			events:  []Event{{Kind: EventReadingLogCreated, ContentType: models.ContentTypeReview}},
			want:    []models.RankingMetric{models.MetricTime, models.MetricCount, models.MetricBadge},
		},
		{
			name:   "reading log without award",
			events: []Event{{Kind: EventReadingLogCreated, ContentType: models.ContentTypeScrap}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newEvaluatorDeps()
			d.badges.On("CountByUser", mock.Anything, "u1").Return(1, nil).Maybe()

			d.evaluator().Announce(context.Background(), "u1", tt.awarded, tt.events...)
			assert.Equal(t, tt.want, d.rankings.dropped())
		})
	}
}

func TestLevelFormulaHoldsAfterEveryAward(t *testing.T) {
	for count := 0; count <= 20; count++ {
		assert.Equal(t, 1+count/2, models.LevelForBadges(count))
	}
}

func TestBadgeServiceRejectsUnknownType(t *testing.T) {
	svc := NewBadgeService(&mockBadgeRepo{}, &mockUserRepo{})
	_, err := svc.ByTypeWithStatus(context.Background(), "u1", "STREAK")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
