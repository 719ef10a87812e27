package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/redis/go-redis/v9"
)

// ConcertCache stores published concerts as JSON.
type ConcertCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ concerts.ConcertCache = (*ConcertCache)(nil)

func NewConcertCache(rdb *redis.Client, ttl time.Duration) *ConcertCache {
	if ttl <= 0 {
		ttl = TTLConcertCache
	}
	return &ConcertCache{rdb: rdb, ttl: ttl}
}

func (c *ConcertCache) Get(ctx context.Context, id int64) (concerts.Concert, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyConcert, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return concerts.Concert{}, false, nil
	}
	if err != nil {
		return concerts.Concert{}, false, err
	}
	var out concerts.Concert
	if err := json.Unmarshal(b, &out); err != nil {
		return concerts.Concert{}, false, fmt.Errorf("decode cached concert %d: %w", id, err)
	}
	return out, true, nil
}

func (c *ConcertCache) Set(ctx context.Context, concert concerts.Concert) error {
	b, err := json.Marshal(concert)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyConcert, concert.ID), b, c.ttl).Err()
}

func (c *ConcertCache) Invalidate(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyConcert, id)).Err()
}
