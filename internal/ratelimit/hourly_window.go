package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const hourlyWindowTTL = 2 * time.Hour

// HourlyWindow maintains per-user hourly request counters so the hot path
// never scans the usage log table. The log stays the source of truth; a cold
// counter is seeded from it by the caller.
type HourlyWindow struct {
	client *redis.Client
}

func NewHourlyWindow(client *redis.Client) *HourlyWindow {
	if client == nil {
		return nil
	}
	return &HourlyWindow{client: client}
}

func windowKey(userID string, hour time.Time) string {
	return fmt.Sprintf("usage:api:%s:%s", userID, hour.UTC().Format("2006010215"))
}

// Incr adds count to the current hour's counter and returns the new total.
func (w *HourlyWindow) Incr(ctx context.Context, userID string, now time.Time, count int64) (int64, error) {
	if w == nil || w.client == nil {
		return 0, errors.New("hourly window client not configured")
	}
	key := windowKey(userID, now)
	pipe := w.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, count)
	pipe.Expire(ctx, key, hourlyWindowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Current returns the counter for the hour containing now. The second return
// reports whether the counter existed; a missing counter means the caller
// must seed it from the usage log.
func (w *HourlyWindow) Current(ctx context.Context, userID string, now time.Time) (int64, bool, error) {
	if w == nil || w.client == nil {
		return 0, false, errors.New("hourly window client not configured")
	}
	val, err := w.client.Get(ctx, windowKey(userID, now)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// Seed initializes the counter for the hour containing now, keeping any
// increments that raced in.
func (w *HourlyWindow) Seed(ctx context.Context, userID string, now time.Time, count int64) error {
	if w == nil || w.client == nil {
		return errors.New("hourly window client not configured")
	}
	key := windowKey(userID, now)
	pipe := w.client.TxPipeline()
	pipe.SetNX(ctx, key, count, hourlyWindowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}
