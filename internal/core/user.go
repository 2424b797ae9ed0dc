package core

import (
	"context"
	"fmt"
	"strings"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
)

const maxDeviceTokenLen = 512

// UserService manages the caller's push targets
type UserService interface {
	RegisterDevice(ctx context.Context, userID, token string) error
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// RegisterDevice adds a push token for the user. A token already held by
// another user moves to this one.
func (s *userService) RegisterDevice(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrFieldRequired.WithDetail("field", "token")
	}
	if len(token) > maxDeviceTokenLen {
		return fmt.Errorf("device token longer than %d bytes: %w", maxDeviceTokenLen, models.ErrInvalidInput)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.AddDeviceToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	logger.WithFields(map[string]interface{}{"user_id": userID}).Debug("device token registered")
	return nil
}
