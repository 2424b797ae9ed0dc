package repository

import (
	"context"
	"fmt"
	"time"

	"booktrack/pkg/models"
)

// RankedUser is a leaderboard row before display formatting
type RankedUser struct {
	UserID       string
	Nickname     string
	ProfileImage string
	Level        int
	Value        int64
}

// Position is one user's place in a full ranking. Rank is -1 when the user
// has no activity in the window.
type Position struct {
	Rank  int
	Total int
	Value int64
}

// RankingRepository aggregates per-user activity since a window start
type RankingRepository interface {
	Top(ctx context.Context, metric models.RankingMetric, since time.Time, limit int) ([]RankedUser, error)
	PositionOf(ctx context.Context, userID string, metric models.RankingMetric, since time.Time) (*Position, error)
}

type rankingRepository struct {
	base
}

// NewRankingRepository creates a new ranking repository
func NewRankingRepository(conn PgConnection) RankingRepository {
	return &rankingRepository{base{conn: conn}}
}

// Aggregates take the window start as $1 and yield (user_id, value).
var metricAggregates = map[models.RankingMetric]string{
	models.MetricTime: `
		SELECT user_id, SUM(duration_minutes)::bigint AS value
		FROM time_records
		WHERE end_time IS NOT NULL AND start_time >= $1
		GROUP BY user_id
		HAVING SUM(duration_minutes) > 0`,
	models.MetricCount: `
		SELECT user_id, COUNT(*)::bigint AS value
		FROM plans
		WHERE status = 'COMPLETED' AND updated_at >= $1
		GROUP BY user_id`,
	models.MetricBadge: `
		SELECT user_id, COUNT(*)::bigint AS value
		FROM user_badges
		WHERE acquired_at >= $1
		GROUP BY user_id`,
}

func aggregateFor(metric models.RankingMetric) (string, error) {
	agg, ok := metricAggregates[metric]
	if !ok {
		return "", models.ErrInvalidSortType
	}
	return agg, nil
}

// Top orders by value descending with user id ascending as the tie-break
func (r *rankingRepository) Top(ctx context.Context, metric models.RankingMetric, since time.Time, limit int) ([]RankedUser, error) {
	agg, err := aggregateFor(metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		WITH agg AS (%s)
		SELECT u.id, u.nickname, u.profile_image, u.level, agg.value
		FROM agg
		JOIN users u ON u.id = agg.user_id
		ORDER BY agg.value DESC, u.id ASC
		LIMIT $2
	`, agg)

	rows, err := r.q(ctx).Query(ctx, query, since, limit)
	if err != nil {
		return nil, mapDBError(err, "ranking_top")
	}
	defer rows.Close()

	out := []RankedUser{}
	for rows.Next() {
		var u RankedUser
		if err := rows.Scan(&u.UserID, &u.Nickname, &u.ProfileImage, &u.Level, &u.Value); err != nil {
			return nil, mapDBError(err, "scan_ranking")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PositionOf ranks every active user with the same ordering as Top and
// returns userID's place in a single statement.
func (r *rankingRepository) PositionOf(ctx context.Context, userID string, metric models.RankingMetric, since time.Time) (*Position, error) {
	agg, err := aggregateFor(metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		WITH agg AS (%s),
		ranked AS (
			SELECT user_id, value, ROW_NUMBER() OVER (ORDER BY value DESC, user_id ASC) AS rank
			FROM agg
		)
		SELECT COALESCE(r.rank, -1)::int, (SELECT COUNT(*) FROM agg)::int, COALESCE(r.value, 0)::bigint
		FROM (SELECT $2::text AS user_id) me
		LEFT JOIN ranked r ON r.user_id = me.user_id
	`, agg)

	var p Position
	if err := r.q(ctx).QueryRow(ctx, query, since, userID).Scan(&p.Rank, &p.Total, &p.Value); err != nil {
		return nil, mapDBError(err, "ranking_position")
	}
	return &p, nil
}
