package repository

import (
	"context"
	"errors"

	"booktrack/pkg/models"
)

// ReadingLogRepository persists reviews and scraps
type ReadingLogRepository interface {
	Create(ctx context.Context, log *models.ReadingLog) error
	GetByID(ctx context.Context, id int64) (*models.ReadingLog, error)
	UpdateContent(ctx context.Context, userID string, id int64, content string) (*models.ReadingLog, error)
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error)
	ListScraps(ctx context.Context, userID string, limit, offset int) ([]*models.Scrap, error)
	ScrapsByBook(ctx context.Context, userID string, order models.ScrapOrder) ([]*models.ScrapBook, error)
	ListByPlan(ctx context.Context, planID int64, contentType models.ContentType) ([]*models.ReadingLog, error)
	CountByType(ctx context.Context, userID string, contentType models.ContentType) (int, error)
}

type readingLogRepository struct {
	base
}

// NewReadingLogRepository creates a new reading log repository
func NewReadingLogRepository(conn PgConnection) ReadingLogRepository {
	return &readingLogRepository{base{conn: conn}}
}

func (r *readingLogRepository) Create(ctx context.Context, l *models.ReadingLog) error {
	query := `
		INSERT INTO reading_logs (user_id, plan_id, content_type, content, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.q(ctx).QueryRow(ctx, query, l.UserID, l.PlanID, string(l.ContentType), l.Content, l.ImageURL).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return mapDBError(err, "create_reading_log")
	}
	return nil
}

const logColumns = `id, user_id, plan_id, content_type, content, image_url, created_at, updated_at`

func scanLog(row interface{ Scan(dest ...any) error }) (*models.ReadingLog, error) {
	var l models.ReadingLog
	err := row.Scan(&l.ID, &l.UserID, &l.PlanID, &l.ContentType, &l.Content, &l.ImageURL, &l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

func (r *readingLogRepository) GetByID(ctx context.Context, id int64) (*models.ReadingLog, error) {
	l, err := scanLog(r.q(ctx).QueryRow(ctx, `SELECT `+logColumns+` FROM reading_logs WHERE id = $1`, id))
	if err != nil {
		err = mapDBError(err, "get_reading_log")
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrLogNotFound
		}
		return nil, err
	}
	return l, nil
}

// UpdateContent rewrites the content of the user's log. Logs of other users
// are reported as not found.
func (r *readingLogRepository) UpdateContent(ctx context.Context, userID string, id int64, content string) (*models.ReadingLog, error) {
	query := `
		UPDATE reading_logs
		SET content = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + logColumns
	l, err := scanLog(r.q(ctx).QueryRow(ctx, query, id, userID, content))
	if err != nil {
		err = mapDBError(err, "update_reading_log")
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrLogNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *readingLogRepository) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM reading_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, mapDBError(err, "delete_reading_log")
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMany removes the listed logs the user owns and skips the rest
func (r *readingLogRepository) DeleteMany(ctx context.Context, userID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM reading_logs WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, mapDBError(err, "delete_reading_logs")
	}
	return tag.RowsAffected(), nil
}

// ListScraps pages through the user's scraps, newest first
func (r *readingLogRepository) ListScraps(ctx context.Context, userID string, limit, offset int) ([]*models.Scrap, error) {
	query := `
		SELECT l.id, l.plan_id, l.content, b.title, b.author, l.created_at
		FROM reading_logs l
		JOIN plans p ON p.id = l.plan_id
		JOIN books b ON b.isbn = p.book_isbn
		WHERE l.user_id = $1 AND l.content_type = 'SCRAP'
		ORDER BY l.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q(ctx).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, mapDBError(err, "list_scraps")
	}
	defer rows.Close()

	out := []*models.Scrap{}
	for rows.Next() {
		var s models.Scrap
		if err := rows.Scan(&s.ID, &s.PlanID, &s.Content, &s.BookTitle, &s.Author, &s.CreatedAt); err != nil {
			return nil, mapDBError(err, "scan_scrap")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

var scrapOrderBy = map[models.ScrapOrder]string{
	models.ScrapOrderLatest: "latest_scrap DESC, p.id DESC",
	models.ScrapOrderOldest: "latest_scrap ASC, p.id ASC",
	models.ScrapOrderCount:  "scrap_count DESC, latest_scrap DESC",
}

// ScrapsByBook summarises the user's scraps per plan
func (r *readingLogRepository) ScrapsByBook(ctx context.Context, userID string, order models.ScrapOrder) ([]*models.ScrapBook, error) {
	orderBy, ok := scrapOrderBy[order]
	if !ok {
		orderBy = scrapOrderBy[models.ScrapOrderLatest]
	}
	query := `
		SELECT p.id, b.title, b.author, b.cover_url, COUNT(l.id) AS scrap_count, MAX(l.created_at) AS latest_scrap
		FROM reading_logs l
		JOIN plans p ON p.id = l.plan_id
		JOIN books b ON b.isbn = p.book_isbn
		WHERE l.user_id = $1 AND l.content_type = 'SCRAP'
		GROUP BY p.id, b.title, b.author, b.cover_url
		ORDER BY ` + orderBy
	rows, err := r.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, mapDBError(err, "scraps_by_book")
	}
	defer rows.Close()

	out := []*models.ScrapBook{}
	for rows.Next() {
		var s models.ScrapBook
		if err := rows.Scan(&s.PlanID, &s.BookTitle, &s.Author, &s.ImageURL, &s.ScrapCount, &s.LatestScrap); err != nil {
			return nil, mapDBError(err, "scan_scrap_book")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListByPlan lists a plan's logs, newest first; an empty type lists both
func (r *readingLogRepository) ListByPlan(ctx context.Context, planID int64, contentType models.ContentType) ([]*models.ReadingLog, error) {
	query := `SELECT ` + logColumns + `
		FROM reading_logs
		WHERE plan_id = $1 AND ($2 = '' OR content_type = $2)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.q(ctx).Query(ctx, query, planID, string(contentType))
	if err != nil {
		return nil, mapDBError(err, "list_reading_logs")
	}
	defer rows.Close()

	out := []*models.ReadingLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, mapDBError(err, "scan_reading_log")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *readingLogRepository) CountByType(ctx context.Context, userID string, contentType models.ContentType) (int, error) {
	var n int
	err := r.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reading_logs WHERE user_id = $1 AND content_type = $2`,
		userID, string(contentType)).Scan(&n)
	if err != nil {
		return 0, mapDBError(err, "count_reading_logs")
	}
	return n, nil
}
