package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Service provides token registration on top of a TokenRegistry.
type Service struct {
	registry TokenRegistry
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new device service.
func NewService(registry TokenRegistry, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger.With().Str("component", "device").Logger(),
		now:      time.Now,
	}
}

// SetToken replaces the user's current delivery token.
// Storage failures are returned wrapped in ErrPersistence.
func (s *Service) SetToken(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return ErrInvalidToken
	}

	dt := &DeviceToken{
		UserID:    userID,
		Token:     token,
		UpdatedAt: s.now().UTC(),
	}

	if err := s.registry.Put(ctx, dt); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("token_last4", dt.TokenLast4()).
		Msg("device token updated")

	return nil
}

// GetToken returns the user's current delivery token.
func (s *Service) GetToken(ctx context.Context, userID string) (*DeviceToken, error) {
	token, err := s.registry.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return token, nil
}

// DeleteToken removes the user's delivery token.
func (s *Service) DeleteToken(ctx context.Context, userID string) error {
	if err := s.registry.Delete(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
