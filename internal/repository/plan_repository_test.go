package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/internal/repository"
	"booktrack/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreatePlan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start, end := day(2024, 1, 1), day(2024, 1, 2)
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	plan := &models.Plan{
		UserID:       "u1",
		BookISBN:     "9788936434120",
		Status:       models.PlanStatusReading,
		StartDate:    &start,
		EndDate:      &end,
		ReadingDates: []time.Time{start, end},
		DailyPages:   150,
		DailyMinutes: 300,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO plans`)).
		WithArgs("u1", "9788936434120", "READING", &start, &end, 0, false,
			[]time.Time{start, end}, []time.Time{}, []int{}, 150, 300).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), created, created))

	require.NoError(t, repository.NewPlanRepository(mock).Create(context.Background(), plan))
	assert.Equal(t, int64(12), plan.ID)
	assert.Equal(t, created, plan.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlanNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM plans WHERE id = $1`)).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err = repository.NewPlanRepository(mock).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddWishlist(t *testing.T) {
	query := regexp.QuoteMeta(`ON CONFLICT (user_id, book_isbn) WHERE status = 'WISHLIST' DO NOTHING`)

	tests := []struct {
		Desc            string
		Inserted        bool
		Error           error
		MockPrepareFunc func(mock pgxmock.PgxPoolIface)
	}{
		{
			Desc:     "new entry",
			Inserted: true,
			MockPrepareFunc: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(query).WithArgs("u1", "isbn").WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			Desc:     "already wishlisted is a no-op",
			Inserted: false,
			MockPrepareFunc: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(query).WithArgs("u1", "isbn").WillReturnResult(pgxmock.NewResult("INSERT", 0))
			},
		},
		{
			Desc:  "unknown book",
			Error: models.ErrInvalidInput,
			MockPrepareFunc: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(query).WithArgs("u1", "isbn").WillReturnError(pgError("23503"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.Desc, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.MockPrepareFunc(mock)
			inserted, err := repository.NewPlanRepository(mock).AddWishlist(context.Background(), "u1", "isbn")
			if tt.Error != nil {
				assert.ErrorIs(t, err, tt.Error)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.Inserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteMany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := repository.NewPlanRepository(mock)

	n, err := repo.DeleteMany(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM plans WHERE user_id = $1 AND id = ANY($2)`)).
		WithArgs("u1", []int64{1, 2, 404}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err = repo.DeleteMany(context.Background(), "u1", []int64{1, 2, 404})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressMissingPlan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE plans SET current_page = $2, status = $3`)).
		WithArgs(int64(5), 120, "COMPLETED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repository.NewPlanRepository(mock).UpdateProgress(context.Background(), 5, 120, models.PlanStatusCompleted)
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
}

func TestListByStatusKeepsScrapCountForCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start, end := day(2024, 1, 1), day(2024, 1, 10)
	cols := []string{"id", "isbn", "title", "author", "cover_url", "status", "start_date", "end_date",
		"current_page", "total_pages", "is_free_plan", "scrap_count"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE p.user_id = $1 AND p.status = $2`)).
		WithArgs("u1", "COMPLETED").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(3), "isbn", "Title", "Author", "", models.PlanStatusCompleted, &start, &end, 300, 300, false, 4))

	list, err := repository.NewPlanRepository(mock).ListByUser(context.Background(), "u1", models.PlanStatusCompleted)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].ScrapCount)
	assert.Equal(t, "2024-01-10", list[0].EndDate.String())
}

func TestCountCompletedInCategory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`b.category_id = $2`)).
		WithArgs("u1", int64(4)).
		WillReturnError(errors.New("lost connection"))

	_, err = repository.NewPlanRepository(mock).CountCompletedInCategory(context.Background(), "u1", 4)
	assert.ErrorContains(t, err, "count_completed_in_category")
}
