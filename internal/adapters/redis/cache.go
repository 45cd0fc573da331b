package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/google/uuid"
)

// unlimited marks events without a capacity in the availability cache.
const unlimitedSeats = "unlimited"

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func availabilityKey(eventID uuid.UUID) string {
	return "availability:" + eventID.String()
}

// GetAvailability returns the cached seat count for an event. The second
// return is false on cache miss. A nil count with a hit means unlimited.
func (c *Cache) GetAvailability(ctx context.Context, eventID uuid.UUID) (*int, bool, error) {
	val, err := c.client.Get(ctx, availabilityKey(eventID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if val == unlimitedSeats {
		return nil, true, nil
	}
	seats, err := strconv.Atoi(val)
	if err != nil {
		return nil, false, err
	}
	return &seats, true, nil
}

func (c *Cache) SetAvailability(ctx context.Context, eventID uuid.UUID, seats *int, ttl time.Duration) error {
	val := unlimitedSeats
	if seats != nil {
		val = strconv.Itoa(*seats)
	}
	return c.client.Set(ctx, availabilityKey(eventID), val, ttl).Err()
}

// InvalidateAvailability drops the cached count after a booking commits so
// the next read recomputes from the bookings table.
func (c *Cache) InvalidateAvailability(ctx context.Context, eventID uuid.UUID) error {
	return c.client.Del(ctx, availabilityKey(eventID)).Err()
}
