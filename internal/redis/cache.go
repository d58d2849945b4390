package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentix/clinic-scheduling/internal/schedule"
)

// SlotCache caches computed day grids per doctor, date and appointment type.
// Every error fails open: the caller sees a miss, the grid is recomputed from
// Postgres, and the problem is logged. Availability display must never block
// on the cache.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SlotCache {
	return &SlotCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "slotcache").Logger(),
	}
}

func slotKey(doctorID uuid.UUID, date time.Time, apptType schedule.AppointmentType) string {
	return fmt.Sprintf("slots:%s:%s:%s", doctorID, date.Format("2006-01-02"), apptType)
}

func dayPattern(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("slots:%s:%s:*", doctorID, date.Format("2006-01-02"))
}

func (c *SlotCache) GetSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, apptType schedule.AppointmentType) ([]schedule.TimeSlot, bool) {
	data, err := c.client.Get(ctx, slotKey(doctorID, date, apptType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Msg("slot cache read failed, treating as miss")
		}
		return nil, false
	}

	var slots []schedule.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.log.Warn().Err(err).Msg("slot cache entry corrupt, treating as miss")
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, apptType schedule.AppointmentType, slots []schedule.TimeSlot) {
	data, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn().Err(err).Msg("slot cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, slotKey(doctorID, date, apptType), data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("slot cache write failed")
	}
}

// InvalidateDay drops every cached grid for one doctor-day. Called after any
// successful write that touches that day's availability.
func (c *SlotCache) InvalidateDay(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	iter := c.client.Scan(ctx, 0, dayPattern(doctorID, date), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("slot cache scan failed during invalidation")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Msg("slot cache invalidation failed")
	}
}
