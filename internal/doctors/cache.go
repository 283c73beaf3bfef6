package doctors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinicbook/pkg/logging"
)

// Cache holds short-lived copies of hot directory listings in redis.
// All methods are nil-safe and fail open; the database stays authoritative.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates a directory cache. Returns nil when redis is not
// configured so callers can skip caching entirely.
func NewCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{redis: client, ttl: ttl, logger: logger}
}

// GetTop returns the cached top-doctors listing, or nil on miss.
func (c *Cache) GetTop(ctx context.Context) []*Doctor {
	if c == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, "doctors:top").Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("doctor cache read failed", "error", err)
		}
		return nil
	}
	var out []*Doctor
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("doctor cache decode failed", "error", err)
		return nil
	}
	return out
}

// SetTop stores the top-doctors listing.
func (c *Cache) SetTop(ctx context.Context, list []*Doctor) {
	if c == nil {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, "doctors:top", data, c.ttl).Err(); err != nil {
		c.logger.Warn("doctor cache write failed", "error", err)
	}
}

// InvalidateTop drops the cached listing, e.g. after a rating lands.
func (c *Cache) InvalidateTop(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.redis.Del(ctx, "doctors:top").Err(); err != nil {
		c.logger.Warn("doctor cache invalidate failed", "error", err)
	}
}
