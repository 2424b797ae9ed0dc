package repository

import (
	"context"

	"booktrack/pkg/models"
)

// NotificationRepository persists the push dispatch log
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
}

type notificationRepository struct {
	base
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(conn PgConnection) NotificationRepository {
	return &notificationRepository{base{conn: conn}}
}

// Create inserts a notification record
func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, kind, title, body, trace_id)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q(ctx).QueryRow(ctx, query, n.UserID, string(n.Kind), n.Title, n.Body, n.TraceID).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return mapDBError(err, "create_notification")
	}
	return nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, COALESCE(user_id, ''), kind, title, body, trace_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.q(ctx).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, mapDBError(err, "list_notifications")
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.TraceID, &n.CreatedAt); err != nil {
			return nil, mapDBError(err, "scan_notification")
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
