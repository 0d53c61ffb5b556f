package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/ingest"
	"github.com/trendpush/trendpush/internal/worker"
)

type fakeConn struct {
	notes  chan string
	drop   chan error
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{notes: make(chan string, 8), drop: make(chan error, 1)}
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (string, error) {
	select {
	case id := <-c.notes:
		return id, nil
	case err := <-c.drop:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *fakeConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

type fakeSource struct {
	sessions  chan *fakeConn
	failFirst int32
	listens   atomic.Int32
}

func newFakeSource(failFirst int32) *fakeSource {
	return &fakeSource{sessions: make(chan *fakeConn, 4), failFirst: failFirst}
}

func (s *fakeSource) Listen(ctx context.Context, channel string) (worker.NotifyConn, error) {
	if s.listens.Add(1) <= s.failFirst {
		return nil, errors.New("connection refused")
	}
	select {
	case conn := <-s.sessions:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSource) LoadRecord(_ context.Context, id string) ([]byte, error) {
	if id == "missing" {
		return nil, worker.ErrRecordNotFound
	}
	return []byte(fmt.Sprintf(`{"contentType":"match","contentId":%q}`, id)), nil
}

type recordingHandler struct {
	mu        sync.Mutex
	release   chan struct{}
	started   int
	active    int
	maxActive int
	records   []string
	ctxErrs   []error
}

func (h *recordingHandler) Handle(ctx context.Context, source ingest.Source, record []byte) {
	h.mu.Lock()
	h.started++
	h.active++
	if h.active > h.maxActive {
		h.maxActive = h.active
	}
	h.mu.Unlock()

	if h.release != nil {
		<-h.release
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
	h.records = append(h.records, string(record))
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
}

func (h *recordingHandler) startedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

func (h *recordingHandler) handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.records...)
}

func newListener(t *testing.T, source worker.NotifySource, handler worker.RecordHandler, concurrency int) *worker.PostgresListener {
	t.Helper()

	l, err := worker.NewPostgresListener(worker.PostgresListenerConfig{
		Source:  source,
		Handler: handler,
		Channel: "trend_events",
		Config: worker.Config{
			Concurrency:      concurrency,
			ReconnectInitial: time.Millisecond,
			ReconnectMax:     5 * time.Millisecond,
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return l
}

func startListener(ctx context.Context, l *worker.PostgresListener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()
	return done
}

func TestNewPostgresListener_RequiresDependencies(t *testing.T) {
	_, err := worker.NewPostgresListener(worker.PostgresListenerConfig{Channel: "trend_events"})
	require.Error(t, err)

	_, err = worker.NewPostgresListener(worker.PostgresListenerConfig{
		Source:  newFakeSource(0),
		Handler: &recordingHandler{},
	})
	require.Error(t, err)
}

func TestPostgresListener_ReconnectsAfterFailures(t *testing.T) {
	source := newFakeSource(2)
	first, second := newFakeConn(), newFakeConn()
	source.sessions <- first
	source.sessions <- second

	handler := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startListener(ctx, newListener(t, source, handler, 2))

	first.notes <- "1"
	require.Eventually(t, func() bool { return len(handler.handled()) == 1 }, time.Second, 5*time.Millisecond)

	first.drop <- errors.New("connection reset by peer")
	second.notes <- "2"
	require.Eventually(t, func() bool { return len(handler.handled()) == 2 }, time.Second, 5*time.Millisecond)

	assert.True(t, first.closed.Load())
	assert.Equal(t, int32(4), source.listens.Load())
	assert.ElementsMatch(t, []string{
		`{"contentType":"match","contentId":"1"}`,
		`{"contentType":"match","contentId":"2"}`,
	}, handler.handled())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
	assert.True(t, second.closed.Load())
}

func TestPostgresListener_SkipsMissingRecords(t *testing.T) {
	source := newFakeSource(0)
	conn := newFakeConn()
	source.sessions <- conn

	handler := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startListener(ctx, newListener(t, source, handler, 1))

	conn.notes <- "missing"
	conn.notes <- "7"
	require.Eventually(t, func() bool { return len(handler.handled()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"contentType":"match","contentId":"7"}`, handler.handled()[0])

	cancel()
	<-done
}

func TestPostgresListener_BoundsConcurrency(t *testing.T) {
	source := newFakeSource(0)
	conn := newFakeConn()
	source.sessions <- conn

	handler := &recordingHandler{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startListener(ctx, newListener(t, source, handler, 1))

	conn.notes <- "1"
	conn.notes <- "2"
	require.Eventually(t, func() bool { return handler.startedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return handler.startedCount() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(handler.release)
	require.Eventually(t, func() bool { return len(handler.handled()) == 2 }, time.Second, 5*time.Millisecond)

	handler.mu.Lock()
	assert.Equal(t, 1, handler.maxActive)
	handler.mu.Unlock()

	cancel()
	<-done
}

func TestPostgresListener_FinishesInFlightOnShutdown(t *testing.T) {
	source := newFakeSource(0)
	conn := newFakeConn()
	source.sessions <- conn

	handler := &recordingHandler{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	done := startListener(ctx, newListener(t, source, handler, 2))

	conn.notes <- "42"
	require.Eventually(t, func() bool { return handler.startedCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
		t.Fatal("listener returned before the in-flight record finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(handler.release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}

	require.Len(t, handler.handled(), 1)
	handler.mu.Lock()
	assert.NoError(t, handler.ctxErrs[0])
	handler.mu.Unlock()
	assert.True(t, conn.closed.Load())
}
