// Package cache is a thin JSON cache over redis, used for version quality
// summaries and rate-limit counters.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SummaryTTL bounds staleness of cached quality summaries. Writes that
// change a summary invalidate eagerly; the TTL is a backstop.
const SummaryTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.Unmarshal([]byte(val), dest)
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) Increment(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// AnalysisSummaryKey is the cache key for a version's analysis summary.
func AnalysisSummaryKey(versionID uuid.UUID) string {
	return "summary:analysis:" + versionID.String()
}

// TestSummaryKey is the cache key for a version's test summary.
func TestSummaryKey(versionID uuid.UUID) string {
	return "summary:tests:" + versionID.String()
}

// InvalidateVersion drops every cached summary for a version. Called after
// new analyses or test results land.
func (c *Cache) InvalidateVersion(ctx context.Context, versionID uuid.UUID) error {
	return c.Delete(ctx, AnalysisSummaryKey(versionID), TestSummaryKey(versionID))
}
