package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/trendpush/trendpush/internal/ingest"
)

// NotifyConn is a dedicated LISTEN session.
type NotifyConn interface {
	// WaitForNotification blocks until a notification arrives and returns its payload.
	WaitForNotification(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// NotifySource opens LISTEN sessions and loads the records they announce.
// Satisfied by *PgNotifySource.
type NotifySource interface {
	Listen(ctx context.Context, channel string) (NotifyConn, error)
	LoadRecord(ctx context.Context, id string) ([]byte, error)
}

// RecordHandler handles one created record. Satisfied by *ChangeTrigger.
type RecordHandler interface {
	Handle(ctx context.Context, source ingest.Source, record []byte)
}

// PostgresListener receives the ids of newly inserted trend_events rows,
// loads each row and hands it to the change trigger.
type PostgresListener struct {
	source  NotifySource
	handler RecordHandler
	channel string
	config  Config
	logger  zerolog.Logger
}

// PostgresListenerConfig holds configuration for a PostgresListener.
type PostgresListenerConfig struct {
	Source  NotifySource
	Handler RecordHandler
	Channel string
	Config  Config
	Logger  zerolog.Logger
}

// NewPostgresListener creates a PostgresListener.
func NewPostgresListener(cfg PostgresListenerConfig) (*PostgresListener, error) {
	if cfg.Source == nil || cfg.Handler == nil {
		return nil, errors.New("worker: listener needs a source and a handler")
	}
	if cfg.Channel == "" {
		return nil, errors.New("worker: listener needs a channel")
	}
	return &PostgresListener{
		source:  cfg.Source,
		handler: cfg.Handler,
		channel: cfg.Channel,
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger.With().Str("component", "pg_listener").Logger(),
	}, nil
}

// Start listens until ctx is done, reconnecting with exponential backoff
// whenever the connection is lost. In-flight records finish before it returns.
func (l *PostgresListener) Start(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.config.ReconnectInitial
	b.MaxInterval = l.config.ReconnectMax
	b.MaxElapsedTime = 0

	sem := make(chan struct{}, l.config.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	l.logger.Info().
		Str("channel", l.channel).
		Int("concurrency", l.config.Concurrency).
		Msg("starting postgres listener")

	err := backoff.RetryNotify(
		func() error { return l.listen(ctx, b, sem, &wg) },
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			l.logger.Warn().Err(err).Dur("retry_in", wait).Msg("postgres listener disconnected")
		},
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (l *PostgresListener) listen(ctx context.Context, b backoff.BackOff, sem chan struct{}, wg *sync.WaitGroup) error {
	conn, err := l.source.Listen(ctx, l.channel)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	defer conn.Close(context.Background())
	b.Reset()

	l.logger.Info().Str("channel", l.channel).Msg("listening for trend events")

	for {
		id, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("waiting for notification: %w", err)
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			// Records already announced are finished during shutdown.
			l.process(context.WithoutCancel(ctx), id)
		}(id)
	}
}

func (l *PostgresListener) process(ctx context.Context, id string) {
	loadCtx, cancel := context.WithTimeout(ctx, l.config.HandleTimeout)
	record, err := l.source.LoadRecord(loadCtx, id)
	cancel()
	if err != nil {
		l.logger.Error().Err(err).Str("record_id", id).Msg("failed to load trend event")
		return
	}

	l.handler.Handle(ctx, ingest.SourcePostgres, record)
}
