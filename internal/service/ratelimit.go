package service

import (
	"context"
	"time"

	"courtyard/internal/middleware"
	"courtyard/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisSubmissionLimiter enforces hourly and daily comment quotas per
// resident using Redis fixed-window counters. Counter failures fail open;
// a Redis outage must not stop residents from commenting.
type redisSubmissionLimiter struct {
	rdb    *redis.Client
	hourly int
	daily  int
}

// NewSubmissionLimiter builds the Redis-backed limiter. Non-positive
// limits disable the corresponding window.
func NewSubmissionLimiter(rdb *redis.Client, hourly, daily int) SubmissionLimiter {
	return &redisSubmissionLimiter{rdb: rdb, hourly: hourly, daily: daily}
}

func (l *redisSubmissionLimiter) Allow(ctx context.Context, residentID uuid.UUID) error {
	if l.hourly > 0 {
		allowed, err := middleware.CheckRateLimit(ctx, l.rdb, "comments:hour", residentID.String(), l.hourly, time.Hour)
		if err == nil && !allowed {
			return models.NewRateLimitedError("Hourly comment limit reached, try again later")
		}
	}
	if l.daily > 0 {
		allowed, err := middleware.CheckRateLimit(ctx, l.rdb, "comments:day", residentID.String(), l.daily, 24*time.Hour)
		if err == nil && !allowed {
			return models.NewRateLimitedError("Daily comment limit reached, try again tomorrow")
		}
	}
	return nil
}
