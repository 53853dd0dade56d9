package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/das622/appointment-booking-api/internal/domain"
)

// Availability memoizes computed slot lists in Redis, keyed per provider-day.
// Entries carry a short TTL and are invalidated on every calendar write; a
// miss or a Redis failure just falls through to recomputation, so the cache
// can never make a stale slot bookable.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewAvailability(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Availability {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Availability{
		rdb: rdb,
		ttl: ttl,
		log: log.With(slog.String("component", "cache.availability")),
	}
}

func (c *Availability) GetSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Slot, bool) {
	raw, err := c.rdb.Get(ctx, dayKey(providerID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
		}
		return nil, false
	}

	var slots []domain.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn("cache entry unreadable", slog.Any("err", err), slog.String("provider_id", providerID.String()))
		return nil, false
	}
	return slots, true
}

func (c *Availability) SetSlots(ctx context.Context, providerID uuid.UUID, date time.Time, slots []domain.Slot) {
	raw, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn("cache marshal failed", slog.Any("err", err))
		return
	}
	if err := c.rdb.Set(ctx, dayKey(providerID, date), raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
	}
}

func (c *Availability) InvalidateDay(ctx context.Context, providerID uuid.UUID, date time.Time) {
	if err := c.rdb.Del(ctx, dayKey(providerID, date)).Err(); err != nil {
		c.log.Warn("cache invalidate failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
	}
}

// InvalidateProvider drops every cached day for the provider; used when the
// whole weekly schedule is replaced.
func (c *Availability) InvalidateProvider(ctx context.Context, providerID uuid.UUID) {
	iter := c.rdb.Scan(ctx, 0, providerPrefix(providerID)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache scan failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache invalidate failed", slog.Any("err", err), slog.String("provider_id", providerID.String()))
	}
}

func providerPrefix(providerID uuid.UUID) string {
	return "availability:" + providerID.String() + ":"
}

func dayKey(providerID uuid.UUID, date time.Time) string {
	return providerPrefix(providerID) + domain.DateOf(date).Format("2006-01-02")
}
