package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/models"
)

const (
	// CacheTTL is the time-to-live for cached session metadata (5 minutes)
	CacheTTL = 5 * time.Minute
)

// SessionCache is a Redis read cache in front of the session registry.
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache initializes a new Redis client
func NewSessionCache(addr, password string, db int) (*SessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &SessionCache{client: client}, nil
}

// Close closes the Redis connection
func (sc *SessionCache) Close() error {
	return sc.client.Close()
}

// GetSession retrieves cached session metadata with tracing. A miss
// returns (nil, nil), not an error.
func (sc *SessionCache) GetSession(ctx context.Context, sessionID string) (*models.FileSession, error) {
	ctx, span := tracer.Start(ctx, "redis.get_session",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	key := fmt.Sprintf("session:%s", sessionID)
	data, err := sc.client.Get(ctx, key).Result()

	if err == redis.Nil {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var session models.FileSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return &session, nil
}

// SetSession stores session metadata in cache with tracing
func (sc *SessionCache) SetSession(ctx context.Context, session *models.FileSession) error {
	ctx, span := tracer.Start(ctx, "redis.set_session",
		trace.WithAttributes(
			attribute.String("session_id", session.ID),
			attribute.String("original_name", session.OriginalName),
		),
	)
	defer span.End()

	key := fmt.Sprintf("session:%s", session.ID)
	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = sc.client.Set(ctx, key, data, CacheTTL).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(CacheTTL.Seconds())),
	)
	return nil
}

// Invalidate removes session metadata from cache with tracing
func (sc *SessionCache) Invalidate(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_session",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
		),
	)
	defer span.End()

	key := fmt.Sprintf("session:%s", sessionID)
	err := sc.client.Del(ctx, key).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache_invalidate_success", true))
	return nil
}
