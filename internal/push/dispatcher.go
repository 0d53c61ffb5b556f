package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/trendpush/trendpush/internal/trend"
)

const instrumentationName = "github.com/trendpush/trendpush/internal/push"

// DefaultTimeout bounds a single submission to the backend.
const DefaultTimeout = 10 * time.Second

// ErrBackendFailure is matched by every error returned from Dispatch.
var ErrBackendFailure = errors.New("push backend failure")

// Sender submits a message to a push backend and returns the backend message id.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// BackendError reports a rejected or failed submission.
type BackendError struct {
	Backend string
	Topic   string
	// Unknown is set when the call timed out or was cancelled before the
	// backend acknowledged it, so the message may still have been delivered.
	Unknown bool
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: sending to topic %q: %v", e.Backend, e.Topic, e.Err)
}

// Unwrap exposes both ErrBackendFailure and the underlying cause.
func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendFailure, e.Err}
}

// Result is a successful dispatch.
type Result struct {
	MessageID string
	Topic     string
}

// DispatcherConfig holds configuration for a Dispatcher.
type DispatcherConfig struct {
	Sender  Sender
	Logger  zerolog.Logger
	Timeout time.Duration
}

// Dispatcher submits one message per event. It never retries.
type Dispatcher struct {
	sender  Sender
	logger  zerolog.Logger
	timeout time.Duration
	tracer  trace.Tracer

	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Sender == nil {
		return nil, errors.New("push: sender is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	meter := otel.Meter(instrumentationName)

	dispatchTotal, err := meter.Int64Counter(
		"push.dispatch.total",
		metric.WithDescription("Number of push submissions by outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"push.dispatch.duration",
		metric.WithDescription("Duration of push submissions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		sender:           cfg.Sender,
		logger:           cfg.Logger.With().Str("component", "dispatcher").Str("backend", cfg.Sender.Name()).Logger(),
		timeout:          timeout,
		tracer:           otel.Tracer(instrumentationName),
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
	}, nil
}

// Dispatch builds the payload for event and submits it to the audience topic.
// Every failure is returned as a *BackendError.
func (d *Dispatcher) Dispatch(ctx context.Context, event *trend.Event, audience trend.Audience) (*Result, error) {
	msg := BuildMessage(event, audience)

	ctx, span := d.tracer.Start(ctx, "push.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("push.backend", d.sender.Name()),
			attribute.String("push.topic", msg.Topic),
			attribute.String("push.audience", string(audience.Kind)),
			attribute.String("content.type", event.ContentType),
			attribute.String("content.id", event.ContentID),
		),
	)
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	messageID, err := d.sender.Send(sendCtx, msg)
	d.record(ctx, audience, time.Since(start), err)

	if err != nil {
		berr := &BackendError{
			Backend: d.sender.Name(),
			Topic:   msg.Topic,
			Unknown: sendCtx.Err() != nil,
			Err:     err,
		}
		span.RecordError(berr)
		span.SetStatus(codes.Error, "push submission failed")

		d.logger.Warn().
			Err(err).
			Str("topic", msg.Topic).
			Str("content_id", event.ContentID).
			Bool("unknown_outcome", berr.Unknown).
			Msg("push submission failed")

		return nil, berr
	}

	span.SetAttributes(attribute.String("push.message_id", messageID))

	d.logger.Debug().
		Str("topic", msg.Topic).
		Str("content_id", event.ContentID).
		Str("message_id", messageID).
		Msg("push submitted")

	return &Result{MessageID: messageID, Topic: msg.Topic}, nil
}

func (d *Dispatcher) record(ctx context.Context, audience trend.Audience, duration time.Duration, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("push.backend", d.sender.Name()),
		attribute.String("push.audience", string(audience.Kind)),
		attribute.String("push.outcome", outcome),
	)
	d.dispatchTotal.Add(ctx, 1, attrs)
	d.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
}
