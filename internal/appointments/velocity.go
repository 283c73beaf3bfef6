package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicbook/clinicbook/pkg/logging"
)

// VelocityGuard caps booking attempts per patient inside a rolling window,
// backed by redis INCR/EXPIRE counters. A nil guard allows everything.
type VelocityGuard struct {
	redis  *redis.Client
	max    int
	window time.Duration
	logger *logging.Logger
}

// NewVelocityGuard creates a booking velocity guard. Returns nil when redis
// is not configured so callers can treat the guard as optional.
func NewVelocityGuard(client *redis.Client, max int, window time.Duration, logger *logging.Logger) *VelocityGuard {
	if client == nil || max <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &VelocityGuard{redis: client, max: max, window: window, logger: logger}
}

// Allow increments the patient's attempt counter and reports whether the
// booking may proceed. Redis failures fail open: a broken counter must not
// block bookings.
func (g *VelocityGuard) Allow(ctx context.Context, patientID uuid.UUID) bool {
	if g == nil {
		return true
	}
	key := fmt.Sprintf("booking_attempts:%s", patientID)

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		g.logger.Warn("velocity guard unavailable, allowing booking", "error", err)
		return true
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, key, g.window).Err(); err != nil {
			g.logger.Warn("velocity guard expire failed", "error", err, "key", key)
		}
	}
	if count > int64(g.max) {
		g.logger.Info("booking velocity limit hit",
			"patient_id", patientID, "count", count, "max", g.max)
		return false
	}
	return true
}
