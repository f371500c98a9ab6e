package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/domain"
)

// RedisStore keeps session snapshots in redis with a TTL, surviving
// process restarts. Keys:
//
//	{prefix}:room:{roomID}:conn:{connID}  session snapshot
//	{prefix}:room:{roomID}:context       bound room context
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.SnapshotTTL}, nil
}

func (r *RedisStore) sessionKey(roomID, connID string) string {
	return fmt.Sprintf("%s:room:%s:conn:%s", r.prefix, roomID, connID)
}

func (r *RedisStore) contextKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:context", r.prefix, roomID)
}

func (r *RedisStore) SaveSession(ctx context.Context, roomID string, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.sessionKey(roomID, session.ConnID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadSession(ctx context.Context, roomID, connID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(roomID, connID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, roomID, connID string) error {
	return r.client.Del(ctx, r.sessionKey(roomID, connID)).Err()
}

func (r *RedisStore) SaveContext(ctx context.Context, roomID string, rc domain.RoomContext) error {
	data, err := json.Marshal(rc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.contextKey(roomID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save room context: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadContext(ctx context.Context, roomID string) (*domain.RoomContext, error) {
	data, err := r.client.Get(ctx, r.contextKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room context: %w", err)
	}
	var rc domain.RoomContext
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *RedisStore) Clear(ctx context.Context, roomID string) error {
	pattern := fmt.Sprintf("%s:room:%s:*", r.prefix, roomID)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan room keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
