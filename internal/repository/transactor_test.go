package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/internal/repository"
	"booktrack/pkg/models"
)

func TestWithTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tx := repository.NewTransactor(mock)
	users := repository.NewUserRepository(mock)
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE users SET level = $2 WHERE id = $1 AND level <> $2`)

	t.Run("commits and routes queries through the transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs("u1", 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			changed, err := users.UpdateLevel(ctx, "u1", 2)
			assert.True(t, changed)
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tx.WithTransaction(ctx, func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs("u1", 3).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectCommit()

		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			return tx.WithTransaction(ctx, func(ctx context.Context) error {
				changed, err := users.UpdateLevel(ctx, "u1", 3)
				assert.False(t, changed)
				return err
			})
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = tx.WithTransaction(ctx, func(ctx context.Context) error { panic("bad state") })
		})
	})

	t.Run("begin failure", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err := tx.WithTransaction(ctx, func(ctx context.Context) error { return nil })
		assert.ErrorContains(t, err, "begin_transaction")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := repository.NewUserRepository(mock)
	query := regexp.QuoteMeta(`SELECT id, nickname, profile_image, level, push_enabled, created_at`)

	mock.ExpectQuery(query).WithArgs("ghost").WillReturnRows(
		pgxmock.NewRows([]string{"id", "nickname", "profile_image", "level", "push_enabled", "created_at"}))

	_, err = repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockLevelInsideTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tx := repository.NewTransactor(mock)
	users := repository.NewUserRepository(mock)
	badges := repository.NewBadgeRepository(mock)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT level FROM users WHERE id = $1 FOR UPDATE`)).
		WithArgs("u1").WillReturnRows(pgxmock.NewRows([]string{"level"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM user_badges WHERE user_id = $1`)).
		WithArgs("u1").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET level = $2 WHERE id = $1 AND level <> $2`)).
		WithArgs("u1", 3).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		level, err := users.LockLevel(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, level)

		count, err := badges.CountByUser(ctx, "u1")
		require.NoError(t, err)
		_, err = users.UpdateLevel(ctx, "u1", models.LevelForBadges(count))
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockLevelMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT level FROM users WHERE id = $1 FOR UPDATE`)).
		WithArgs("ghost").WillReturnRows(pgxmock.NewRows([]string{"level"}))

	_, err = repository.NewUserRepository(mock).LockLevel(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
