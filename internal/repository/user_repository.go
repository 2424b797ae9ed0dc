package repository

import (
	"context"
	"errors"

	"booktrack/pkg/models"
)

// UserRepository reads user profiles and maintains the derived level
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	LockLevel(ctx context.Context, id string) (int, error)
	UpdateLevel(ctx context.Context, id string, level int) (bool, error)
	DeviceTokens(ctx context.Context, id string) ([]string, error)
	AddDeviceToken(ctx context.Context, id, token string) error
}

type userRepository struct {
	base
}

// NewUserRepository creates a new user repository
func NewUserRepository(conn PgConnection) UserRepository {
	return &userRepository{base{conn: conn}}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, nickname, profile_image, level, push_enabled, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	err := r.q(ctx).QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Nickname, &u.ProfileImage, &u.Level, &u.PushEnabled, &u.CreatedAt,
	)
	if err != nil {
		err = mapDBError(err, "get_user")
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// LockLevel reads the stored level under a row lock held until the
// surrounding transaction ends. Badge evaluation for one user serializes on
// it, so each level recompute counts every committed award.
func (r *userRepository) LockLevel(ctx context.Context, id string) (int, error) {
	var level int
	err := r.q(ctx).QueryRow(ctx, `SELECT level FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&level)
	if err != nil {
		err = mapDBError(err, "lock_user_level")
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrUserNotFound
		}
		return 0, err
	}
	return level, nil
}

// UpdateLevel writes level only when it differs; it reports whether the row
// changed.
func (r *userRepository) UpdateLevel(ctx context.Context, id string, level int) (bool, error) {
	tag, err := r.q(ctx).Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1 AND level <> $2`, id, level)
	if err != nil {
		return false, mapDBError(err, "update_level")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepository) DeviceTokens(ctx context.Context, id string) ([]string, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, mapDBError(err, "list_device_tokens")
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, mapDBError(err, "scan_device_token")
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// AddDeviceToken registers token for the user, moving it if another user
// held it before.
func (r *userRepository) AddDeviceToken(ctx context.Context, id, token string) error {
	query := `
		INSERT INTO device_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id
	`
	if _, err := r.q(ctx).Exec(ctx, query, id, token); err != nil {
		return mapDBError(err, "add_device_token")
	}
	return nil
}
