package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry stores each token as a plain string under TokenPath(userID).
// The update time is kept in a separate "<path>:meta" key.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry creates a new Redis token registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

type redisMeta struct {
	UpdatedAt int64 `json:"updatedAt"`
}

func metaKey(userID string) string {
	return TokenPath(userID) + ":meta"
}

// Put overwrites the user's token.
func (r *RedisRegistry) Put(ctx context.Context, token *DeviceToken) error {
	meta, err := json.Marshal(redisMeta{UpdatedAt: token.UpdatedAt.UnixMilli()})
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, TokenPath(token.UserID), token.Token, 0)
		pipe.Set(ctx, metaKey(token.UserID), meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put token: %w", err)
	}
	return nil
}

// Get retrieves the user's token.
func (r *RedisRegistry) Get(ctx context.Context, userID string) (*DeviceToken, error) {
	values, err := r.client.MGet(ctx, TokenPath(userID), metaKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get token: %w", err)
	}

	value, ok := values[0].(string)
	if !ok {
		return nil, ErrTokenNotFound
	}

	token := &DeviceToken{UserID: userID, Token: value}
	if raw, ok := values[1].(string); ok {
		var meta redisMeta
		if json.Unmarshal([]byte(raw), &meta) == nil && meta.UpdatedAt > 0 {
			token.UpdatedAt = time.UnixMilli(meta.UpdatedAt).UTC()
		}
	}
	return token, nil
}

// Delete removes the user's token.
func (r *RedisRegistry) Delete(ctx context.Context, userID string) error {
	err := r.client.Del(ctx, TokenPath(userID), metaKey(userID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete token: %w", err)
	}
	return nil
}
