package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/api/middleware"
	"github.com/trendpush/trendpush/internal/api/models"
	"github.com/trendpush/trendpush/internal/api/response"
	"github.com/trendpush/trendpush/internal/device"
)

// TokenStore manages a user's delivery token. Satisfied by *device.Service.
type TokenStore interface {
	SetToken(ctx context.Context, userID, token string) error
	GetToken(ctx context.Context, userID string) (*device.DeviceToken, error)
	DeleteToken(ctx context.Context, userID string) error
}

// TokenHandler handles device token registration.
type TokenHandler struct {
	tokens   TokenStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokens TokenStore, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		tokens:   tokens,
		validate: newRequestValidator(),
		logger:   logger,
	}
}

// PutToken handles PUT /v1/users/{userId}/fcm-token.
// Callers may only set their own token.
func (h *TokenHandler) PutToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownUserID(w, r)
	if !ok {
		return
	}

	var req models.TokenRegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil {
		response.BadRequest(w, r, "request body must be a JSON object", nil)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.BadRequest(w, r, "invalid token registration", fieldErrors(err))
		return
	}

	err := h.tokens.SetToken(r.Context(), userID, req.Token)
	switch {
	case err == nil:
		response.NoContent(w, r)
	case errors.Is(err, device.ErrInvalidToken):
		response.BadRequest(w, r, "token must not be blank", []models.FieldError{
			{Field: "token", Message: "must not be blank", Code: "required"},
		})
	default:
		h.storeFailed(w, r, err, userID, "failed to store device token")
	}
}

// GetToken handles GET /v1/users/{userId}/fcm-token.
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownUserID(w, r)
	if !ok {
		return
	}

	token, err := h.tokens.GetToken(r.Context(), userID)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.TokenResponse{
			UserID:     token.UserID,
			TokenLast4: token.TokenLast4(),
			UpdatedAt:  models.Timestamp(token.UpdatedAt),
		})
	case errors.Is(err, device.ErrTokenNotFound):
		response.NotFound(w, r, "no device token registered")
	default:
		h.storeFailed(w, r, err, userID, "failed to load device token")
	}
}

// DeleteToken handles DELETE /v1/users/{userId}/fcm-token, used on sign-out.
// Deleting a missing token succeeds.
func (h *TokenHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownUserID(w, r)
	if !ok {
		return
	}

	if err := h.tokens.DeleteToken(r.Context(), userID); err != nil {
		h.storeFailed(w, r, err, userID, "failed to delete device token")
		return
	}
	response.NoContent(w, r)
}

func (h *TokenHandler) storeFailed(w http.ResponseWriter, r *http.Request, err error, userID, msg string) {
	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("user_id", userID).
		Msg(msg)
	response.InternalError(w, r, msg)
}

// ownUserID returns the path user id when it matches the authenticated user.
func ownUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if userID != middleware.GetUserID(r.Context()) {
		response.Forbidden(w, r, "cannot access the token of another user")
		return "", false
	}
	return userID, true
}

// fieldErrors converts validator errors to problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "is invalid"
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "max":
			msg = "is too long"
		}
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: msg,
			Code:    fe.Tag(),
		})
	}
	return out
}

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
