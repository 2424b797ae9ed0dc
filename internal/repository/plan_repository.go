package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"booktrack/pkg/models"
)

// ReminderTarget is a push-enabled user with a plan scheduled on a day
type ReminderTarget struct {
	UserID    string
	Nickname  string
	PlanID    int64
	BookTitle string
}

// PlanRepository persists reading plans
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Plan, error)
	FindWishlist(ctx context.Context, userID, isbn string) (*models.Plan, error)
	ConvertWishlist(ctx context.Context, plan *models.Plan) error
	AddWishlist(ctx context.Context, userID, isbn string) (bool, error)
	RemoveWishlist(ctx context.Context, userID, isbn string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status models.PlanStatus) error
	UpdateEndDate(ctx context.Context, id int64, endDate time.Time) error
	UpdateProgress(ctx context.Context, id int64, currentPage int, status models.PlanStatus) error
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error)

	ListByUser(ctx context.Context, userID string, status models.PlanStatus) ([]*models.PlanSummary, error)
	ListReadingOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error)
	ListActiveOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error)
	ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]*models.PlanSummary, error)
	ListReminderTargets(ctx context.Context, day time.Time) ([]ReminderTarget, error)

	CountByStatus(ctx context.Context, userID string, status models.PlanStatus) (int, error)
	CountCompletedInCategory(ctx context.Context, userID string, categoryID int64) (int, error)
}

type planRepository struct {
	base
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(conn PgConnection) PlanRepository {
	return &planRepository{base{conn: conn}}
}

const planColumns = `id, user_id, book_isbn, status, start_date, end_date, current_page, is_free_plan,
	reading_dates, excluded_dates, excluded_weekdays, daily_pages, daily_minutes, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	err := row.Scan(
		&p.ID, &p.UserID, &p.BookISBN, &p.Status, &p.StartDate, &p.EndDate, &p.CurrentPage, &p.IsFreePlan,
		&p.ReadingDates, &p.ExcludedDates, &p.ExcludedWeekdays, &p.DailyPages, &p.DailyMinutes,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func planNotFound(err error, op string) error {
	err = mapDBError(err, op)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrPlanNotFound
	}
	return err
}

func emptyDates(ds []time.Time) []time.Time {
	if ds == nil {
		return []time.Time{}
	}
	return ds
}

func emptyInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func (r *planRepository) Create(ctx context.Context, p *models.Plan) error {
	query := `
		INSERT INTO plans (user_id, book_isbn, status, start_date, end_date, current_page, is_free_plan,
			reading_dates, excluded_dates, excluded_weekdays, daily_pages, daily_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	err := r.q(ctx).QueryRow(ctx, query,
		p.UserID, p.BookISBN, string(p.Status), p.StartDate, p.EndDate, p.CurrentPage, p.IsFreePlan,
		emptyDates(p.ReadingDates), emptyDates(p.ExcludedDates), emptyInts(p.ExcludedWeekdays),
		p.DailyPages, p.DailyMinutes,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapDBError(err, "create_plan")
	}
	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	p, err := scanPlan(r.q(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		return nil, planNotFound(err, "get_plan")
	}
	return p, nil
}

// GetByIDForUpdate locks the plan row until the surrounding transaction ends
func (r *planRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Plan, error) {
	p, err := scanPlan(r.q(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, planNotFound(err, "lock_plan")
	}
	return p, nil
}

func (r *planRepository) FindWishlist(ctx context.Context, userID, isbn string) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE user_id = $1 AND book_isbn = $2 AND status = 'WISHLIST'`
	p, err := scanPlan(r.q(ctx).QueryRow(ctx, query, userID, isbn))
	if err != nil {
		return nil, planNotFound(err, "find_wishlist")
	}
	return p, nil
}

// ConvertWishlist turns an existing wishlist row into the scheduled plan p
func (r *planRepository) ConvertWishlist(ctx context.Context, p *models.Plan) error {
	query := `
		UPDATE plans
		SET status = $2, start_date = $3, end_date = $4, current_page = $5, is_free_plan = $6,
			reading_dates = $7, excluded_dates = $8, excluded_weekdays = $9,
			daily_pages = $10, daily_minutes = $11, updated_at = NOW()
		WHERE id = $1 AND status = 'WISHLIST'
		RETURNING created_at, updated_at
	`
	err := r.q(ctx).QueryRow(ctx, query,
		p.ID, string(p.Status), p.StartDate, p.EndDate, p.CurrentPage, p.IsFreePlan,
		emptyDates(p.ReadingDates), emptyDates(p.ExcludedDates), emptyInts(p.ExcludedWeekdays),
		p.DailyPages, p.DailyMinutes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return planNotFound(err, "convert_wishlist")
	}
	return nil
}

// AddWishlist reports false when the book was already wishlisted
func (r *planRepository) AddWishlist(ctx context.Context, userID, isbn string) (bool, error) {
	query := `
		INSERT INTO plans (user_id, book_isbn, status)
		VALUES ($1, $2, 'WISHLIST')
		ON CONFLICT (user_id, book_isbn) WHERE status = 'WISHLIST' DO NOTHING
	`
	tag, err := r.q(ctx).Exec(ctx, query, userID, isbn)
	if err != nil {
		return false, mapDBError(err, "add_wishlist")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *planRepository) RemoveWishlist(ctx context.Context, userID, isbn string) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx,
		`DELETE FROM plans WHERE user_id = $1 AND book_isbn = $2 AND status = 'WISHLIST'`, userID, isbn)
	if err != nil {
		return false, mapDBError(err, "remove_wishlist")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *planRepository) UpdateStatus(ctx context.Context, id int64, status models.PlanStatus) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE plans SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return mapDBError(err, "update_plan_status")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlanNotFound
	}
	return nil
}

func (r *planRepository) UpdateEndDate(ctx context.Context, id int64, endDate time.Time) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE plans SET end_date = $2, updated_at = NOW() WHERE id = $1`, id, endDate)
	if err != nil {
		return mapDBError(err, "update_plan_end_date")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlanNotFound
	}
	return nil
}

func (r *planRepository) UpdateProgress(ctx context.Context, id int64, currentPage int, status models.PlanStatus) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE plans SET current_page = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, currentPage, string(status))
	if err != nil {
		return mapDBError(err, "update_plan_progress")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlanNotFound
	}
	return nil
}

// Delete removes one plan owned by userID and reports whether it existed
func (r *planRepository) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM plans WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, mapDBError(err, "delete_plan")
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMany removes the listed plans owned by userID; unknown ids are ignored
func (r *planRepository) DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM plans WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, mapDBError(err, "delete_plans")
	}
	return tag.RowsAffected(), nil
}

const summarySelect = `
	SELECT p.id, b.isbn, b.title, b.author, b.cover_url, p.status, p.start_date, p.end_date,
		p.current_page, b.total_pages, p.is_free_plan,
		(SELECT COUNT(*) FROM reading_logs l WHERE l.plan_id = p.id AND l.content_type = 'SCRAP') AS scrap_count
	FROM plans p
	JOIN books b ON b.isbn = p.book_isbn
`

func (r *planRepository) listSummaries(ctx context.Context, op, query string, args ...any) ([]*models.PlanSummary, error) {
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err, op)
	}
	defer rows.Close()

	out := []*models.PlanSummary{}
	for rows.Next() {
		var (
			s          models.PlanSummary
			start, end *time.Time
		)
		if err := rows.Scan(
			&s.PlanID, &s.ISBN, &s.Title, &s.Author, &s.CoverURL, &s.Status, &start, &end,
			&s.CurrentPage, &s.TotalPages, &s.IsFreePlan, &s.ScrapCount,
		); err != nil {
			return nil, mapDBError(err, op)
		}
		if start != nil {
			d := models.NewDate(*start)
			s.StartDate = &d
		}
		if end != nil {
			d := models.NewDate(*end)
			s.EndDate = &d
		}
		if s.Status != models.PlanStatusCompleted {
			s.ScrapCount = 0
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListByUser lists the user's plans; an empty status lists all of them
func (r *planRepository) ListByUser(ctx context.Context, userID string, status models.PlanStatus) ([]*models.PlanSummary, error) {
	if status == "" {
		return r.listSummaries(ctx, "list_plans",
			summarySelect+` WHERE p.user_id = $1 ORDER BY p.updated_at DESC, p.id DESC`, userID)
	}
	return r.listSummaries(ctx, "list_plans_by_status",
		summarySelect+` WHERE p.user_id = $1 AND p.status = $2 ORDER BY p.updated_at DESC, p.id DESC`,
		userID, string(status))
}

// ListReadingOn lists READING plans that have day among their reading dates
func (r *planRepository) ListReadingOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error) {
	return r.listSummaries(ctx, "list_plans_reading_on",
		summarySelect+` WHERE p.user_id = $1 AND p.status = 'READING' AND $2::date = ANY(p.reading_dates)
		ORDER BY p.id`, userID, day)
}

// ListActiveOn lists plans whose [start, end] range contains day
func (r *planRepository) ListActiveOn(ctx context.Context, userID string, day time.Time) ([]*models.PlanSummary, error) {
	return r.listSummaries(ctx, "list_plans_active_on",
		summarySelect+` WHERE p.user_id = $1 AND p.start_date <= $2::date AND p.end_date >= $2::date
		ORDER BY p.start_date, p.id`, userID, day)
}

// ListOverlapping lists plans whose range intersects [from, to]
func (r *planRepository) ListOverlapping(ctx context.Context, userID string, from, to time.Time) ([]*models.PlanSummary, error) {
	return r.listSummaries(ctx, "list_plans_overlapping",
		summarySelect+` WHERE p.user_id = $1 AND p.start_date <= $3::date AND p.end_date >= $2::date
		ORDER BY p.start_date, p.id`, userID, from, to)
}

func (r *planRepository) ListReminderTargets(ctx context.Context, day time.Time) ([]ReminderTarget, error) {
	query := `
		SELECT u.id, u.nickname, p.id, b.title
		FROM plans p
		JOIN users u ON u.id = p.user_id
		JOIN books b ON b.isbn = p.book_isbn
		WHERE u.push_enabled AND p.status = 'READING' AND $1::date = ANY(p.reading_dates)
		ORDER BY u.id, p.id
	`
	rows, err := r.q(ctx).Query(ctx, query, day)
	if err != nil {
		return nil, mapDBError(err, "list_reminder_targets")
	}
	defer rows.Close()

	var out []ReminderTarget
	for rows.Next() {
		var t ReminderTarget
		if err := rows.Scan(&t.UserID, &t.Nickname, &t.PlanID, &t.BookTitle); err != nil {
			return nil, mapDBError(err, "scan_reminder_target")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *planRepository) CountByStatus(ctx context.Context, userID string, status models.PlanStatus) (int, error) {
	var n int
	err := r.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM plans WHERE user_id = $1 AND status = $2`, userID, string(status)).Scan(&n)
	if err != nil {
		return 0, mapDBError(err, "count_plans_by_status")
	}
	return n, nil
}

func (r *planRepository) CountCompletedInCategory(ctx context.Context, userID string, categoryID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM plans p
		JOIN books b ON b.isbn = p.book_isbn
		WHERE p.user_id = $1 AND p.status = 'COMPLETED' AND b.category_id = $2
	`
	var n int
	if err := r.q(ctx).QueryRow(ctx, query, userID, categoryID).Scan(&n); err != nil {
		return 0, mapDBError(err, "count_completed_in_category")
	}
	return n, nil
}
