// Package store holds the optional side stores of the scoring service: the
// Redis prediction cache, the Postgres audit log and the Elasticsearch index.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PredictionCache stores label lists by request fingerprint.
type PredictionCache interface {
	Get(ctx context.Context, key string) ([]interface{}, bool, error)
	Set(ctx context.Context, key string, labels []interface{}) error
}

// RedisCache keeps predictions in Redis with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// CacheKey fingerprints rows for one model version:
// prefix:name:version:sha256(json(rows)).
func CacheKey(prefix, model, version string, rows interface{}) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s:%s", prefix, model, version, hex.EncodeToString(sum[:])), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]interface{}, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var labels []interface{}
	if err := dec.Decode(&labels); err != nil {
		return nil, false, fmt.Errorf("cache entry %s is corrupt: %w", key, err)
	}
	return labels, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, labels []interface{}) error {
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	if err := c.client.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}
