package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/api"
	"github.com/trendpush/trendpush/internal/api/handler"
	"github.com/trendpush/trendpush/internal/api/models"
	"github.com/trendpush/trendpush/internal/auth"
	"github.com/trendpush/trendpush/internal/device"
	"github.com/trendpush/trendpush/internal/ingest"
	"github.com/trendpush/trendpush/internal/push"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []push.Message
	err      error
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, msg push.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if s.err != nil {
		return "", s.err
	}
	return "projects/demo/messages/1", nil
}

func (s *fakeSender) sent() []push.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]push.Message(nil), s.messages...)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	router   http.Handler
	sender   *fakeSender
	jwt      *auth.JWTService
	registry *device.InMemoryRegistry
}

func newTestEnv(t *testing.T, pingers map[string]handler.Pinger) *testEnv {
	t.Helper()

	sender := &fakeSender{}
	dispatcher, err := push.NewDispatcher(push.DispatcherConfig{Sender: sender, Logger: zerolog.Nop()})
	require.NoError(t, err)

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{Dispatcher: dispatcher, Logger: zerolog.Nop()})
	require.NoError(t, err)

	registry := device.NewInMemoryRegistry()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-that-is-long-enough",
		Issuer:     "https://api.trendpush.test",
		Audience:   "trendpush-api",
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "now",
		Logger:         zerolog.Nop(),
		Events:         pipeline,
		Tokens:         device.NewService(registry, zerolog.Nop()),
		TokenValidator: jwtService,
		Pingers:        pingers,
	})

	return &testEnv{router: router, sender: sender, jwt: jwtService, registry: registry}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func postEvent(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/trending", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_SendTrending_TeamEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(postEvent(`{"contentType":"match","contentId":"42","team":"india","title":"Big match","message":"India vs Australia"}`))

	require.Equal(t, http.StatusOK, w.Code)

	var body models.NotificationAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "projects/demo/messages/1", body.MessageID)

	sent := env.sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "team_india", sent[0].Topic)
	assert.Equal(t, "Big match", sent[0].Notification.Title)
	assert.Equal(t, "India vs Australia", sent[0].Notification.Body)
	assert.Equal(t, map[string]string{"contentType": "match", "contentId": "42", "team": "india"}, sent[0].Data)
}

func TestRouter_SendTrending_GlobalEventDefaults(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(postEvent(`{"contentType":"video","contentId":7}`))

	require.Equal(t, http.StatusOK, w.Code)

	sent := env.sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "trending", sent[0].Topic)
	assert.Equal(t, "Trending Content", sent[0].Notification.Title)
	assert.Equal(t, "Check out what's trending!", sent[0].Notification.Body)
	assert.Equal(t, "7", sent[0].Data["contentId"])
	assert.Equal(t, "", sent[0].Data["team"])
}

func TestRouter_SendTrending_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "missing content id", body: `{"contentType":"match"}`},
		{name: "blank content type", body: `{"contentType":"","contentId":"1"}`},
		{name: "not json", body: `not json`},
		{name: "array", body: `[1,2]`},
		{name: "null", body: `null`},
		{name: "trailing garbage", body: `{"contentType":"match","contentId":"42"} garbage`},
		{name: "two objects", body: `{"contentType":"match","contentId":"42"}{"contentType":"match","contentId":"43"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do(postEvent(tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Invalid notification data"}`, w.Body.String())
			assert.Empty(t, env.sender.sent())
		})
	}
}

func TestRouter_SendTrending_BackendFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sender.err = errors.New("quota exceeded")

	w := env.do(postEvent(`{"contentType":"match","contentId":"42"}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body models.NotificationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "quota exceeded")
	assert.Len(t, env.sender.sent(), 1)
}

func tokenRequest(t *testing.T, env *testEnv, pathUser, tokenUser, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/v1/users/"+pathUser+"/fcm-token", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if tokenUser != "" {
		token, _, err := env.jwt.GenerateAccessToken(tokenUser, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRouter_PutToken(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(tokenRequest(t, env, "user-1", "user-1", `{"token":"fcm-token-abcd"}`))

	assert.Equal(t, http.StatusNoContent, w.Code)

	stored, err := env.registry.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "fcm-token-abcd", stored.Token)
}

func TestRouter_PutToken_OtherUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(tokenRequest(t, env, "user-2", "user-1", `{"token":"fcm-token-abcd"}`))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, 0, env.registry.Len())
}

func TestRouter_PutToken_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(tokenRequest(t, env, "user-1", "", `{"token":"fcm-token-abcd"}`))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, env.registry.Len())
}

func TestRouter_PutToken_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing token", body: `{}`},
		{name: "blank token", body: `{"token":"   "}`},
		{name: "malformed", body: `{"token":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do(tokenRequest(t, env, "user-1", "user-1", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var problem models.Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
			assert.Equal(t, http.StatusBadRequest, problem.Status)
			assert.Equal(t, 0, env.registry.Len())
		})
	}
}

func TestRouter_PutToken_RequiresJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := tokenRequest(t, env, "user-1", "user-1", `token=abc`)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := env.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_GetToken(t *testing.T) {
	env := newTestEnv(t, nil)

	require.Equal(t, http.StatusNoContent, env.do(tokenRequest(t, env, "user-1", "user-1", `{"token":"fcm-token-abcd"}`)).Code)

	req := tokenRequest(t, env, "user-1", "user-1", "")
	req.Method = http.MethodGet
	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body.UserID)
	assert.Equal(t, "abcd", body.TokenLast4)
	assert.False(t, time.Time(body.UpdatedAt).IsZero())
	assert.NotContains(t, w.Body.String(), "fcm-token-abcd")
}

func TestRouter_GetToken_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	req := tokenRequest(t, env, "user-1", "user-1", "")
	req.Method = http.MethodGet
	w := env.do(req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_DeleteToken(t *testing.T) {
	env := newTestEnv(t, nil)

	require.Equal(t, http.StatusNoContent, env.do(tokenRequest(t, env, "user-1", "user-1", `{"token":"fcm-token-abcd"}`)).Code)

	req := tokenRequest(t, env, "user-1", "user-1", "")
	req.Method = http.MethodDelete
	w := env.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, env.registry.Len())

	// A second delete is still a success.
	req = tokenRequest(t, env, "user-1", "user-1", "")
	req.Method = http.MethodDelete
	assert.Equal(t, http.StatusNoContent, env.do(req).Code)
}

func TestRouter_DeleteToken_OtherUser(t *testing.T) {
	env := newTestEnv(t, nil)

	require.Equal(t, http.StatusNoContent, env.do(tokenRequest(t, env, "user-1", "user-1", `{"token":"fcm-token-abcd"}`)).Code)

	req := tokenRequest(t, env, "user-1", "user-2", "")
	req.Method = http.MethodDelete
	w := env.do(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, env.registry.Len())
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck_DependencyDown(t *testing.T) {
	env := newTestEnv(t, map[string]handler.Pinger{"postgres": failingPinger{}})

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
	require.Len(t, health.Checks, 1)
	assert.Equal(t, "postgres", health.Checks[0].Name)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/unknown", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
