package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketsync/ingestor/internal/telemetry"
)

// Cache wraps an Aggregator with a Redis cache-aside layer, grounded on
// the teacher's alert.Deduplicator hot-path-GET/fallback/SET-with-TTL
// idiom. A cache miss or a Redis outage always falls through to the live
// aggregation; the cache is never the sole source of truth.
type Cache struct {
	aggregator *Aggregator
	redis      *redis.Client
	ttl        time.Duration
	logger     *slog.Logger
}

// NewCache builds a Cache in front of aggregator, keyed in Redis with ttl.
func NewCache(aggregator *Aggregator, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{aggregator: aggregator, redis: rdb, ttl: ttl, logger: logger}
}

func cacheKey(tenantID string, from, to time.Time) string {
	return fmt.Sprintf("stats:%s:%s:%s", tenantID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

// GetTenantStats serves from Redis on a hit; otherwise computes the live
// aggregation and populates the cache for ttl.
func (c *Cache) GetTenantStats(ctx context.Context, tenantID string, from, to time.Time) (Stats, error) {
	key := cacheKey(tenantID, from, to)

	if cached, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var stats Stats
		if err := json.Unmarshal(cached, &stats); err == nil {
			telemetry.StatsCacheHitsTotal.WithLabelValues("hit").Inc()
			return stats, nil
		}
		c.logger.Warn("analytics cache: failed to decode cached entry, falling through", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("analytics cache: redis unavailable, falling through to live query", "error", err)
	}
	telemetry.StatsCacheHitsTotal.WithLabelValues("miss").Inc()

	stats, err := c.aggregator.GetTenantStats(ctx, tenantID, from, to)
	if err != nil {
		return Stats{}, err
	}

	if encoded, err := json.Marshal(stats); err == nil {
		if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("analytics cache: failed to populate cache", "key", key, "error", err)
		}
	}

	return stats, nil
}
