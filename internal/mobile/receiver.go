package mobile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Fallback text, shared with the server-side validator defaults.
const (
	DefaultTitle   = "Trending Content"
	DefaultMessage = "Check out what's trending!"
)

// ReceiverConfig holds configuration for a Receiver.
type ReceiverConfig struct {
	Platform Platform
	Logger   zerolog.Logger
}

// Receiver turns delivered payloads into local notifications.
type Receiver struct {
	platform Platform
	logger   zerolog.Logger

	channelMu    sync.Mutex
	channelReady atomic.Bool
}

// NewReceiver creates a Receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	return &Receiver{
		platform: cfg.Platform,
		logger:   cfg.Logger.With().Str("component", "receiver").Logger(),
	}
}

// OnDelivered displays a local notification for payload and returns it.
// Failures are logged before they are returned. A platform delivery callback
// has nobody to report to and should drop the error; it is returned for tools
// such as trendctl that surface it.
func (r *Receiver) OnDelivered(ctx context.Context, payload Payload) (*LocalNotification, error) {
	if err := r.ensureChannel(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to create notification channel")
		return nil, err
	}

	n := BuildNotification(payload)
	if n.Intent.Extras[ExtraContentID] == "" {
		r.logger.Warn().Msg("delivered payload has no content id")
	}

	if err := r.platform.Notify(ctx, n); err != nil {
		r.logger.Error().
			Err(err).
			Int32("notification_id", int32(n.ID)).
			Msg("failed to display notification")
		return nil, fmt.Errorf("displaying notification: %w", err)
	}

	r.logger.Debug().
		Int32("notification_id", int32(n.ID)).
		Str("content_id", n.Intent.Extras[ExtraContentID]).
		Msg("notification displayed")

	return &n, nil
}

// ensureChannel creates the trending channel once per Receiver.
func (r *Receiver) ensureChannel(ctx context.Context) error {
	if r.channelReady.Load() {
		return nil
	}

	r.channelMu.Lock()
	defer r.channelMu.Unlock()
	if r.channelReady.Load() {
		return nil
	}

	exists, err := r.platform.ChannelExists(ctx, ChannelID)
	if err != nil {
		return fmt.Errorf("checking notification channel: %w", err)
	}
	if !exists {
		if err := r.platform.CreateChannel(ctx, trendingChannel()); err != nil {
			return fmt.Errorf("creating notification channel: %w", err)
		}
	}

	r.channelReady.Store(true)
	return nil
}

// BuildNotification maps a payload to the local notification shown for it.
// The data block decides the deep link; the notification block wins for text.
func BuildNotification(payload Payload) LocalNotification {
	var contentType, contentID, team string
	title, body := DefaultTitle, DefaultMessage

	if payload.Data != nil {
		contentType = payload.Data[DataContentType]
		contentID = payload.Data[DataContentID]
		team = payload.Data[DataTeam]
		if v := payload.Data[DataTitle]; v != "" {
			title = v
		}
		if v := payload.Data[DataMessage]; v != "" {
			body = v
		}
	}

	if nb := payload.Notification; nb != nil {
		if nb.Title != "" {
			title = nb.Title
		}
		if nb.Body != "" {
			body = nb.Body
		}
	}

	id := IdentityOf(contentID)

	n := LocalNotification{
		ID:         id,
		ChannelID:  ChannelID,
		Title:      title,
		Body:       body,
		AutoCancel: true,
		Intent: Intent{
			RequestCode: id,
			Extras: map[string]string{
				ExtraContentType:    contentType,
				ExtraContentID:      contentID,
				ExtraShouldNavigate: "true",
			},
			Flags: FlagClearTop | FlagSingleTop,
		},
	}
	if team != "" {
		n.SubText = "Team: " + team
	}
	return n
}
