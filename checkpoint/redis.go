package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using a Redis hash per run.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for runs (0 means no expiration)
}

// NewRedisStore creates a new Redis-backed checkpoint store
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "genflow:checkpoint:",
			TTL:    24 * time.Hour,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) runKey(runID string) string {
	return s.prefix + runID
}

// SaveStep stores the step document as a hash field on the run key.
func (s *RedisStore) SaveStep(ctx context.Context, runID, stepKey string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal step document: %w", err)
	}

	key := s.runKey(runID)
	if err := s.client.HSet(ctx, key, stepKey, data).Err(); err != nil {
		return fmt.Errorf("failed to store step in Redis: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh run TTL: %w", err)
		}
	}
	return nil
}

// LoadRun fetches every saved step document for the run.
func (s *RedisStore) LoadRun(ctx context.Context, runID string) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, s.runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load run from Redis: %w", err)
	}

	out := make(map[string]any, len(fields))
	for stepKey, raw := range fields {
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %q: %w", stepKey, err)
		}
		out[stepKey] = doc
	}
	return out, nil
}

// ClearRun deletes the run key.
func (s *RedisStore) ClearRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.runKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to clear run in Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
