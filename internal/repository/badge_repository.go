package repository

import (
	"context"
	"time"

	"booktrack/pkg/models"
)

// BadgeRepository reads badge definitions and records awards
type BadgeRepository interface {
	ListByTypes(ctx context.Context, types ...models.BadgeType) ([]*models.Badge, error)
	HasBadge(ctx context.Context, userID string, badgeID int64) (bool, error)
	Award(ctx context.Context, userID string, badgeID int64) (bool, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	ListWithStatus(ctx context.Context, userID string, badgeType models.BadgeType) ([]*models.BadgeStatus, error)
	ListAcquired(ctx context.Context, userID string) ([]*models.BadgeStatus, error)
}

type badgeRepository struct {
	base
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(conn PgConnection) BadgeRepository {
	return &badgeRepository{base{conn: conn}}
}

func (r *badgeRepository) ListByTypes(ctx context.Context, types ...models.BadgeType) ([]*models.Badge, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	query := `
		SELECT id, name, type, target, goal, image_url, description
		FROM badges
		WHERE type = ANY($1)
		ORDER BY goal, id
	`
	rows, err := r.q(ctx).Query(ctx, query, names)
	if err != nil {
		return nil, mapDBError(err, "list_badges_by_type")
	}
	defer rows.Close()

	var out []*models.Badge
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Type, &b.Target, &b.Goal, &b.ImageURL, &b.Description); err != nil {
			return nil, mapDBError(err, "scan_badge")
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *badgeRepository) HasBadge(ctx context.Context, userID string, badgeID int64) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
		userID, badgeID).Scan(&exists)
	if err != nil {
		return false, mapDBError(err, "has_badge")
	}
	return exists, nil
}

// Award inserts the (user, badge) pair and reports whether this call created
// it. A conflicting row means the badge was already held and is not an error.
func (r *badgeRepository) Award(ctx context.Context, userID string, badgeID int64) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, badge_id) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.q(ctx).QueryRow(ctx, query, userID, badgeID).Scan(&id)
	if err != nil {
		err = mapDBError(err, "award_badge")
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *badgeRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, mapDBError(err, "count_user_badges")
	}
	return n, nil
}

// ListWithStatus lists all badges (of one type when badgeType is set) with
// the user's acquisition marked.
func (r *badgeRepository) ListWithStatus(ctx context.Context, userID string, badgeType models.BadgeType) ([]*models.BadgeStatus, error) {
	query := `
		SELECT b.id, b.name, b.type, b.target, b.goal, b.image_url, b.description, ub.acquired_at
		FROM badges b
		LEFT JOIN user_badges ub ON ub.badge_id = b.id AND ub.user_id = $1
		WHERE ($2 = '' OR b.type = $2)
		ORDER BY b.type, b.goal, b.id
	`
	return r.listStatus(ctx, "list_badges_with_status", query, userID, string(badgeType))
}

// ListAcquired lists the user's badges, most recent first
func (r *badgeRepository) ListAcquired(ctx context.Context, userID string) ([]*models.BadgeStatus, error) {
	query := `
		SELECT b.id, b.name, b.type, b.target, b.goal, b.image_url, b.description, ub.acquired_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.acquired_at DESC, b.id
	`
	return r.listStatus(ctx, "list_acquired_badges", query, userID)
}

func (r *badgeRepository) listStatus(ctx context.Context, op, query string, args ...any) ([]*models.BadgeStatus, error) {
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err, op)
	}
	defer rows.Close()

	out := []*models.BadgeStatus{}
	for rows.Next() {
		var (
			s        models.BadgeStatus
			acquired *time.Time
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Target, &s.Goal, &s.ImageURL, &s.Description, &acquired); err != nil {
			return nil, mapDBError(err, op)
		}
		s.Acquired = acquired != nil
		s.AcquiredAt = acquired
		out = append(out, &s)
	}
	return out, rows.Err()
}
