package repository

import (
	"context"
	"errors"
	"time"

	"booktrack/pkg/models"
)

const openSessionIndex = "uq_time_records_open"

// TimeRecordRepository persists reading timer sessions
type TimeRecordRepository interface {
	Start(ctx context.Context, userID string, planID int64, startTime time.Time) (*models.TimeRecord, error)
	FindOpen(ctx context.Context, userID string) (*models.TimeRecord, error)
	LockOpen(ctx context.Context, userID string) (*models.TimeRecord, error)
	Close(ctx context.Context, id int64, endTime time.Time, minutes int) error
	SumMinutes(ctx context.Context, userID string) (int64, error)
	PlanSeconds(ctx context.Context, planID int64, from, to time.Time) (total int64, window int64, err error)
	ListByPlanBetween(ctx context.Context, planID int64, from, to time.Time) ([]*models.TimeRecord, error)
	DailyMinutes(ctx context.Context, userID string, from, to time.Time, loc *time.Location) (map[string]int, error)
}

type timeRecordRepository struct {
	base
}

// NewTimeRecordRepository creates a new time record repository
func NewTimeRecordRepository(conn PgConnection) TimeRecordRepository {
	return &timeRecordRepository{base{conn: conn}}
}

// Start opens a session. The partial unique index on open sessions turns a
// concurrent second start into ErrTimerAlreadyRunning.
func (r *timeRecordRepository) Start(ctx context.Context, userID string, planID int64, startTime time.Time) (*models.TimeRecord, error) {
	rec := &models.TimeRecord{UserID: userID, PlanID: planID, StartTime: startTime}
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO time_records (user_id, plan_id, start_time) VALUES ($1, $2, $3) RETURNING id`,
		userID, planID, startTime,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err, openSessionIndex) {
			return nil, models.ErrTimerAlreadyRunning
		}
		return nil, mapDBError(err, "start_timer")
	}
	return rec, nil
}

const openSessionQuery = `
	SELECT id, user_id, plan_id, start_time, end_time, duration_minutes
	FROM time_records
	WHERE user_id = $1 AND end_time IS NULL
`

func (r *timeRecordRepository) findOpen(ctx context.Context, query, op, userID string) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	err := r.q(ctx).QueryRow(ctx, query, userID).Scan(
		&rec.ID, &rec.UserID, &rec.PlanID, &rec.StartTime, &rec.EndTime, &rec.DurationMinutes,
	)
	if err != nil {
		err = mapDBError(err, op)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoRunningTimer
		}
		return nil, err
	}
	return &rec, nil
}

// FindOpen returns the running session or ErrNoRunningTimer
func (r *timeRecordRepository) FindOpen(ctx context.Context, userID string) (*models.TimeRecord, error) {
	return r.findOpen(ctx, openSessionQuery, "find_open_timer", userID)
}

// LockOpen is FindOpen with a row lock; concurrent stops serialize on it and
// the loser sees ErrNoRunningTimer.
func (r *timeRecordRepository) LockOpen(ctx context.Context, userID string) (*models.TimeRecord, error) {
	return r.findOpen(ctx, openSessionQuery+` FOR UPDATE`, "lock_open_timer", userID)
}

func (r *timeRecordRepository) Close(ctx context.Context, id int64, endTime time.Time, minutes int) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE time_records SET end_time = $2, duration_minutes = $3 WHERE id = $1 AND end_time IS NULL`,
		id, endTime, minutes)
	if err != nil {
		return mapDBError(err, "close_timer")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNoRunningTimer
	}
	return nil
}

// SumMinutes totals the user's closed sessions
func (r *timeRecordRepository) SumMinutes(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.q(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0)::bigint FROM time_records WHERE user_id = $1 AND end_time IS NOT NULL`,
		userID).Scan(&total)
	if err != nil {
		return 0, mapDBError(err, "sum_minutes")
	}
	return total, nil
}

// PlanSeconds returns the closed reading seconds of a plan overall and for
// sessions starting in [from, to).
func (r *timeRecordRepository) PlanSeconds(ctx context.Context, planID int64, from, to time.Time) (int64, int64, error) {
	query := `
		SELECT
			COALESCE(SUM(EXTRACT(EPOCH FROM (end_time - start_time))), 0)::bigint,
			COALESCE(SUM(EXTRACT(EPOCH FROM (end_time - start_time)))
				FILTER (WHERE start_time >= $2 AND start_time < $3), 0)::bigint
		FROM time_records
		WHERE plan_id = $1 AND end_time IS NOT NULL
	`
	var total, window int64
	if err := r.q(ctx).QueryRow(ctx, query, planID, from, to).Scan(&total, &window); err != nil {
		return 0, 0, mapDBError(err, "plan_seconds")
	}
	return total, window, nil
}

func (r *timeRecordRepository) ListByPlanBetween(ctx context.Context, planID int64, from, to time.Time) ([]*models.TimeRecord, error) {
	query := `
		SELECT id, user_id, plan_id, start_time, end_time, duration_minutes
		FROM time_records
		WHERE plan_id = $1 AND end_time IS NOT NULL AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`
	rows, err := r.q(ctx).Query(ctx, query, planID, from, to)
	if err != nil {
		return nil, mapDBError(err, "list_time_records")
	}
	defer rows.Close()

	var out []*models.TimeRecord
	for rows.Next() {
		var rec models.TimeRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PlanID, &rec.StartTime, &rec.EndTime, &rec.DurationMinutes); err != nil {
			return nil, mapDBError(err, "scan_time_record")
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DailyMinutes sums the user's closed sessions starting in [from, to) per
// local day of loc, keyed by YYYY-MM-DD. Days without reading are absent.
func (r *timeRecordRepository) DailyMinutes(ctx context.Context, userID string, from, to time.Time, loc *time.Location) (map[string]int, error) {
	query := `
		SELECT to_char(start_time AT TIME ZONE $4, 'YYYY-MM-DD') AS day, SUM(duration_minutes)::int
		FROM time_records
		WHERE user_id = $1 AND end_time IS NOT NULL AND start_time >= $2 AND start_time < $3
		GROUP BY day
	`
	rows, err := r.q(ctx).Query(ctx, query, userID, from, to, loc.String())
	if err != nil {
		return nil, mapDBError(err, "daily_minutes")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var day string
		var minutes int
		if err := rows.Scan(&day, &minutes); err != nil {
			return nil, mapDBError(err, "scan_daily_minutes")
		}
		out[day] = minutes
	}
	return out, rows.Err()
}
