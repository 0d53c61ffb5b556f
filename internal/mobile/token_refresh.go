package mobile

import (
	"context"

	"github.com/rs/zerolog"
)

// Session is the signed-in user of the host application, if any.
type Session struct {
	UserID string
	// AccessToken authorises calls to the token API.
	AccessToken string
}

// TokenWriter persists a user's delivery token.
type TokenWriter interface {
	SetToken(ctx context.Context, userID, token string) error
}

// TokenRefreshHandler stores freshly issued delivery tokens.
type TokenRefreshHandler struct {
	writer TokenWriter
	logger zerolog.Logger
}

// NewTokenRefreshHandler creates a TokenRefreshHandler.
func NewTokenRefreshHandler(writer TokenWriter, logger zerolog.Logger) *TokenRefreshHandler {
	return &TokenRefreshHandler{
		writer: writer,
		logger: logger.With().Str("component", "token_refresh").Logger(),
	}
}

// OnTokenIssued persists token for the session's user. Without a signed-in
// user nothing is stored. Write failures are logged and not retried; the next
// issued token tries again. It always returns nil.
func (h *TokenRefreshHandler) OnTokenIssued(ctx context.Context, session *Session, token string) error {
	if session == nil || session.UserID == "" {
		h.logger.Debug().Msg("no signed-in user, token not registered")
		return nil
	}

	if err := h.writer.SetToken(ctx, session.UserID, token); err != nil {
		h.logger.Error().
			Err(err).
			Str("user_id", session.UserID).
			Msg("failed to persist device token")
		return nil
	}

	h.logger.Info().Str("user_id", session.UserID).Msg("device token registered")
	return nil
}
