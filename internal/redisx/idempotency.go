package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	rdb *redis.Client
}

var _ concerts.Idempotency = (*Idempotency)(nil)

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func (i *Idempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemPurchase, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, key, confirmationNumber string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemPurchase, key), confirmationNumber, TTLIdempotency).Err()
}
