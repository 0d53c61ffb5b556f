package push_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/push"
	"github.com/trendpush/trendpush/internal/trend"
)

// fakeSender records submitted messages.
type fakeSender struct {
	mu       sync.Mutex
	messages []push.Message
	id       string
	err      error
	block    bool
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(ctx context.Context, msg push.Message) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func (s *fakeSender) sent() []push.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]push.Message(nil), s.messages...)
}

func newDispatcher(t *testing.T, sender push.Sender, timeout time.Duration) *push.Dispatcher {
	t.Helper()
	d, err := push.NewDispatcher(push.DispatcherConfig{
		Sender:  sender,
		Logger:  zerolog.Nop(),
		Timeout: timeout,
	})
	require.NoError(t, err)
	return d
}

func TestBuildMessage(t *testing.T) {
	event := &trend.Event{
		ContentType: "match",
		ContentID:   "42",
		Title:       trend.DefaultTitle,
		Message:     trend.DefaultMessage,
		Team:        "india",
	}

	msg := push.BuildMessage(event, trend.Route(event))

	assert.Equal(t, "team_india", msg.Topic)
	assert.Equal(t, trend.DefaultTitle, msg.Notification.Title)
	assert.Equal(t, trend.DefaultMessage, msg.Notification.Body)
	assert.Equal(t, map[string]string{
		"contentType": "match",
		"contentId":   "42",
		"team":        "india",
	}, msg.Data)
}

func TestDispatcher_Dispatch_TeamAudience(t *testing.T) {
	sender := &fakeSender{id: "projects/demo/messages/1"}
	d := newDispatcher(t, sender, time.Second)

	event := &trend.Event{ContentType: "match", ContentID: "42", Title: "t", Message: "m", Team: "india"}
	result, err := d.Dispatch(context.Background(), event, trend.Route(event))
	require.NoError(t, err)

	assert.Equal(t, "projects/demo/messages/1", result.MessageID)
	assert.Equal(t, "team_india", result.Topic)

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "team_india", sent[0].Topic)
}

func TestDispatcher_Dispatch_GlobalAudience(t *testing.T) {
	sender := &fakeSender{id: "msg-1"}
	d := newDispatcher(t, sender, time.Second)

	event := &trend.Event{ContentType: "match", ContentID: "42", Title: "t", Message: "m"}
	result, err := d.Dispatch(context.Background(), event, trend.Route(event))
	require.NoError(t, err)

	assert.Equal(t, "trending", result.Topic)
	assert.Equal(t, "", sender.sent()[0].Data["team"])
}

func TestDispatcher_Dispatch_BackendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	d := newDispatcher(t, sender, time.Second)

	event := &trend.Event{ContentType: "match", ContentID: "42", Title: "t", Message: "m"}
	result, err := d.Dispatch(context.Background(), event, trend.Global())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, push.ErrBackendFailure))
	assert.Contains(t, err.Error(), "connection refused")

	var berr *push.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "fake", berr.Backend)
	assert.Equal(t, "trending", berr.Topic)
	assert.False(t, berr.Unknown)

	// No internal retry.
	assert.Len(t, sender.sent(), 1)
}

func TestDispatcher_Dispatch_TimeoutIsUnknownOutcome(t *testing.T) {
	sender := &fakeSender{block: true}
	d := newDispatcher(t, sender, 20*time.Millisecond)

	event := &trend.Event{ContentType: "match", ContentID: "42", Title: "t", Message: "m"}
	_, err := d.Dispatch(context.Background(), event, trend.Global())

	require.Error(t, err)
	assert.True(t, errors.Is(err, push.ErrBackendFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var berr *push.BackendError
	require.ErrorAs(t, err, &berr)
	assert.True(t, berr.Unknown)
}

func TestNewDispatcher_RequiresSender(t *testing.T) {
	_, err := push.NewDispatcher(push.DispatcherConfig{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestLogSender_Send(t *testing.T) {
	sender := push.NewLogSender(zerolog.Nop())

	id, err := sender.Send(context.Background(), push.Message{Topic: "trending"})
	require.NoError(t, err)

	assert.Equal(t, "log", sender.Name())
	assert.True(t, strings.HasPrefix(id, "dry-run/"))
}
