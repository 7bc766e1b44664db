package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

// NewRedisClient connects to addr (host:port) and verifies the connection.
func NewRedisClient(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		DB:           0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func statusKey(jobID string) string {
	return fmt.Sprintf("processed:%s", jobID)
}

// GetJobStatus returns the cached status or "" when the key is absent.
func (r *RedisCache) GetJobStatus(ctx context.Context, jobID string) (string, error) {
	status, err := r.client.Get(ctx, statusKey(jobID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get job status from Redis: %w", err)
	}
	return status, nil
}

func (r *RedisCache) SetJobStatus(ctx context.Context, jobID, status string, ttl time.Duration) error {
	if err := r.client.Set(ctx, statusKey(jobID), status, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set job status in Redis: %w", err)
	}
	return nil
}
