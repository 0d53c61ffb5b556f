package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/ingest"
	"github.com/trendpush/trendpush/internal/push"
	"github.com/trendpush/trendpush/internal/trend"
)

// Processor runs one decoded record through the pipeline. Satisfied by *ingest.Pipeline.
type Processor interface {
	Process(ctx context.Context, source ingest.Source, raw map[string]any) (*push.Result, error)
}

// TriggerMetrics tracks change trigger statistics.
type TriggerMetrics struct {
	mu sync.RWMutex

	// Counters
	Received   int64
	Dispatched int64
	Invalid    int64
	Failed     int64
	Panics     int64

	// Timings
	LastEventAt     time.Time
	LastDuration    time.Duration
	TotalDuration   time.Duration
	LastFailureAt   time.Time
	LastFailureText string
}

// ChangeTriggerConfig holds configuration for creating a ChangeTrigger.
type ChangeTriggerConfig struct {
	Processor Processor
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// ChangeTrigger handles one created record at a time. It has no caller to
// report to, so every outcome is logged and counted, never returned.
type ChangeTrigger struct {
	processor Processor
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   *TriggerMetrics
}

// NewChangeTrigger creates a ChangeTrigger.
func NewChangeTrigger(cfg ChangeTriggerConfig) *ChangeTrigger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().HandleTimeout
	}
	return &ChangeTrigger{
		processor: cfg.Processor,
		timeout:   timeout,
		logger:    cfg.Logger.With().Str("component", "change_trigger").Logger(),
		metrics:   &TriggerMetrics{},
	}
}

type outcome int

const (
	outcomeDispatched outcome = iota
	outcomeInvalid
	outcomeFailed
	outcomePanic
)

// Handle processes one record. It never panics.
func (t *ChangeTrigger) Handle(ctx context.Context, source ingest.Source, record []byte) {
	start := time.Now()
	logger := t.logger.With().Str("source", string(source)).Logger()

	result := outcomePanic
	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("panic: %v", r)
			logger.Error().
				Interface("panic", r).
				Msg("change trigger recovered from panic")
		}
		t.updateMetrics(result, failure, start)
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	raw, err := ingest.DecodeRecord(record)
	if err != nil {
		result, failure = outcomeInvalid, err
		logger.Warn().Err(err).Msg("dropping undecodable record")
		return
	}

	res, err := t.processor.Process(ctx, source, raw)
	switch {
	case err == nil:
		result = outcomeDispatched
		logger.Info().
			Str("message_id", res.MessageID).
			Str("topic", res.Topic).
			Dur("duration", time.Since(start)).
			Msg("record dispatched")
	case errors.Is(err, trend.ErrInvalid):
		result, failure = outcomeInvalid, err
		logger.Warn().Err(err).Msg("dropping invalid record")
	default:
		result, failure = outcomeFailed, err
		logger.Error().Err(err).Msg("record dispatch failed")
	}
}

func (t *ChangeTrigger) updateMetrics(result outcome, failure error, start time.Time) {
	end := time.Now()
	duration := end.Sub(start)

	t.metrics.mu.Lock()
	defer t.metrics.mu.Unlock()

	t.metrics.Received++
	switch result {
	case outcomeDispatched:
		t.metrics.Dispatched++
	case outcomeInvalid:
		t.metrics.Invalid++
	case outcomeFailed:
		t.metrics.Failed++
	case outcomePanic:
		t.metrics.Panics++
	}
	if failure != nil && result != outcomeInvalid {
		t.metrics.LastFailureAt = end
		t.metrics.LastFailureText = failure.Error()
	}
	t.metrics.LastEventAt = end
	t.metrics.LastDuration = duration
	t.metrics.TotalDuration += duration
}

// GetMetrics returns a copy of the current metrics.
func (t *ChangeTrigger) GetMetrics() TriggerMetrics {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()

	return TriggerMetrics{
		Received:        t.metrics.Received,
		Dispatched:      t.metrics.Dispatched,
		Invalid:         t.metrics.Invalid,
		Failed:          t.metrics.Failed,
		Panics:          t.metrics.Panics,
		LastEventAt:     t.metrics.LastEventAt,
		LastDuration:    t.metrics.LastDuration,
		TotalDuration:   t.metrics.TotalDuration,
		LastFailureAt:   t.metrics.LastFailureAt,
		LastFailureText: t.metrics.LastFailureText,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (t *ChangeTrigger) MetricsSnapshot() map[string]interface{} {
	m := t.GetMetrics()
	return map[string]interface{}{
		"received":       m.Received,
		"dispatched":     m.Dispatched,
		"invalid":        m.Invalid,
		"failed":         m.Failed,
		"panics":         m.Panics,
		"last_event_at":  m.LastEventAt,
		"last_duration":  m.LastDuration.String(),
		"total_duration": m.TotalDuration.String(),
		"last_failure":   m.LastFailureText,
	}
}
