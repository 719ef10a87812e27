package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Claim marks an event as being processed by service. It reports false
// when another delivery already claimed it.
func Claim(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	ok, err := rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return ok, nil
}

// Unclaim lets a later redelivery retry a failed event.
func Unclaim(ctx context.Context, rdb *redis.Client, service, eventID string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
