// Package ingest runs inbound trend events through validation, routing and dispatch.
// Every transport adapter (HTTP, Pub/Sub, Postgres) goes through Pipeline.Process
// so their behaviour cannot diverge.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/push"
	"github.com/trendpush/trendpush/internal/trend"
)

// Source names the transport an event arrived on.
type Source string

// Sources.
const (
	SourceHTTP     Source = "http"
	SourcePubSub   Source = "pubsub"
	SourcePostgres Source = "postgres"
	SourceCLI      Source = "cli"
)

// Dispatcher submits a validated event. Satisfied by *push.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *trend.Event, audience trend.Audience) (*push.Result, error)
}

// PipelineConfig holds configuration for a Pipeline.
type PipelineConfig struct {
	Dispatcher Dispatcher
	Logger     zerolog.Logger
}

// Pipeline composes validate, route and dispatch.
type Pipeline struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("ingest: dispatcher is required")
	}
	return &Pipeline{
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Process validates raw, derives its audience and dispatches it once.
// Errors match trend.ErrInvalid or push.ErrBackendFailure.
func (p *Pipeline) Process(ctx context.Context, source Source, raw map[string]any) (*push.Result, error) {
	event, err := trend.Validate(raw)
	if err != nil {
		p.logger.Info().
			Err(err).
			Str("source", string(source)).
			Msg("rejected invalid trend event")
		return nil, err
	}

	audience := trend.Route(event)

	result, err := p.dispatcher.Dispatch(ctx, event, audience)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("source", string(source)).
		Str("content_type", event.ContentType).
		Str("content_id", event.ContentID).
		Str("audience", audience.String()).
		Str("message_id", result.MessageID).
		Msg("trend notification dispatched")

	return result, nil
}

// DecodeRecord parses a JSON object into an untyped payload.
// Numbers are kept as json.Number so numeric ids keep their exact text.
// Anything that is not a single JSON object is reported as trend.ErrInvalid.
func DecodeRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", trend.ErrInvalid, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: record is not an object", trend.ErrInvalid)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after record", trend.ErrInvalid)
	}
	return raw, nil
}
