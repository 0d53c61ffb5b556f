package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRecordNotFound is returned when an announced trend event row no longer exists.
var ErrRecordNotFound = errors.New("trend event not found")

// PgNotifySource listens on a pgxpool and reads trend_events rows.
type PgNotifySource struct {
	pool *pgxpool.Pool
}

// NewPgNotifySource creates a PgNotifySource.
func NewPgNotifySource(pool *pgxpool.Pool) *PgNotifySource {
	return &PgNotifySource{pool: pool}
}

// Listen takes a connection out of the pool and issues LISTEN on it.
func (s *PgNotifySource) Listen(ctx context.Context, channel string) (NotifyConn, error) {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	// The LISTEN session must not go back into the pool.
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, err
	}
	return &pgNotifyConn{conn: conn}, nil
}

const selectTrendEvent = `
	SELECT content_type, content_id, title, message, team
	FROM trend_events
	WHERE id = $1`

// LoadRecord reads the row with the given id and encodes it as a JSON record.
// NULL columns are left out.
func (s *PgNotifySource) LoadRecord(ctx context.Context, id string) ([]byte, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid trend event id %q: %w", id, err)
	}

	var contentType, contentID, title, message, team *string
	err = s.pool.QueryRow(ctx, selectTrendEvent, rowID).Scan(&contentType, &contentID, &title, &message, &team)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRecordNotFound, rowID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading trend event %d: %w", rowID, err)
	}

	return encodeRecord(map[string]*string{
		"contentType": contentType,
		"contentId":   contentID,
		"title":       title,
		"message":     message,
		"team":        team,
	})
}

func encodeRecord(columns map[string]*string) ([]byte, error) {
	record := make(map[string]string, len(columns))
	for key, value := range columns {
		if value != nil {
			record[key] = *value
		}
	}
	return json.Marshal(record)
}

type pgNotifyConn struct {
	conn *pgx.Conn
}

func (c *pgNotifyConn) WaitForNotification(ctx context.Context) (string, error) {
	n, err := c.conn.WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

func (c *pgNotifyConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
