package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

func idempotencyKey(key string) string {
	return "idemp:" + key
}

// Idempotency replays stored booking responses for repeated POSTs carrying
// the same Idempotency-Key header. An empty key is a no-op on both sides so
// handlers can call it unconditionally.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

// StoredResponse is the replayable part of a booking response. Result holds
// the rendered JSON body as sent to the first caller.
type StoredResponse struct {
	Status int             `json:"status"`
	Result json.RawMessage `json:"result"`
}

// Get returns the stored response for key, or nil when the key is empty,
// unknown or expired.
func (i *Idempotency) Get(ctx context.Context, key string) (*StoredResponse, error) {
	if key == "" {
		return nil, nil
	}
	val, err := i.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp StoredResponse) error {
	if key == "" {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, idempotencyKey(key), data, i.ttl).Err()
}
