// Package handler provides HTTP handlers for the trendpush API.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/api/middleware"
	"github.com/trendpush/trendpush/internal/api/models"
	"github.com/trendpush/trendpush/internal/api/response"
	"github.com/trendpush/trendpush/internal/ingest"
	"github.com/trendpush/trendpush/internal/push"
	"github.com/trendpush/trendpush/internal/trend"
)

// maxEventBodyBytes bounds the request body of a trend event.
const maxEventBodyBytes = 64 << 10

// EventProcessor runs a decoded trend event through the pipeline.
type EventProcessor interface {
	Process(ctx context.Context, source ingest.Source, raw map[string]any) (*push.Result, error)
}

// NotificationHandler handles trend event submission.
type NotificationHandler struct {
	processor EventProcessor
	logger    zerolog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(processor EventProcessor, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		processor: processor,
		logger:    logger,
	}
}

// SendTrending handles POST /v1/notifications/trending.
// Responses use the fixed {success, messageId} / {error} bodies rather than problem+json.
func (h *NotificationHandler) SendTrending(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err != nil {
		h.invalid(w, r, err)
		return
	}

	raw, err := ingest.DecodeRecord(body)
	if err != nil {
		h.invalid(w, r, err)
		return
	}

	result, err := h.processor.Process(r.Context(), ingest.SourceHTTP, raw)
	if err != nil {
		if errors.Is(err, trend.ErrInvalid) {
			h.invalid(w, r, err)
			return
		}

		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("trend notification dispatch failed")
		response.JSON(w, r, http.StatusInternalServerError, models.NotificationError{Error: err.Error()})
		return
	}

	response.JSON(w, r, http.StatusOK, models.NotificationAccepted{
		Success:   true,
		MessageID: result.MessageID,
	})
}

func (h *NotificationHandler) invalid(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg("rejected trend notification")
	response.JSON(w, r, http.StatusBadRequest, models.NotificationError{Error: models.InvalidNotificationMessage})
}
