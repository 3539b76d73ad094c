package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SlotCache keeps projected slot listings briefly in redis. A cache miss or
// redis failure is never fatal: callers fall through to recomputing the
// listing. Writes to the booking ledger invalidate the affected day so a
// just-taken slot does not linger as available.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotCache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("telehealth.internal.booking.cache"),
	}
}

func slotKeyFor(doctorID uuid.UUID, date time.Time, tz string) string {
	return fmt.Sprintf("slots:%s:%s:%s", doctorID, date.UTC().Format("2006-01-02"), tz)
}

func slotInvalidationPattern(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("slots:%s:%s:*", doctorID, date.UTC().Format("2006-01-02"))
}

// Get returns the cached listing, or (nil, false) on a miss or redis error.
func (c *SlotCache) Get(ctx context.Context, doctorID uuid.UUID, date time.Time, tz string) ([]SlotView, bool) {
	ctx, span := c.tracer.Start(ctx, "booking.cache_get")
	defer span.End()

	data, err := c.redis.Get(ctx, slotKeyFor(doctorID, date, tz)).Bytes()
	if err != nil {
		if err != redis.Nil {
			span.RecordError(err)
		}
		return nil, false
	}
	var views []SlotView
	if err := json.Unmarshal(data, &views); err != nil {
		span.RecordError(err)
		return nil, false
	}
	return views, true
}

// Set stores the listing for the configured TTL. Errors are swallowed; the
// cache is advisory.
func (c *SlotCache) Set(ctx context.Context, doctorID uuid.UUID, date time.Time, tz string, views []SlotView) {
	ctx, span := c.tracer.Start(ctx, "booking.cache_set")
	defer span.End()

	data, err := json.Marshal(views)
	if err != nil {
		span.RecordError(err)
		return
	}
	if err := c.redis.Set(ctx, slotKeyFor(doctorID, date, tz), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
	}
}

// Invalidate drops every cached projection of the doctor's day, across all
// requesting timezones.
func (c *SlotCache) Invalidate(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	ctx, span := c.tracer.Start(ctx, "booking.cache_invalidate")
	defer span.End()

	iter := c.redis.Scan(ctx, 0, slotInvalidationPattern(doctorID, date), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
	}
}
