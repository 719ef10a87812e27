package redisx

import "time"

const (
	// Idempotent purchase: idem:purchase:{key} -> confirmation_number
	KeyIdemPurchase = "idem:purchase:%s"

	// Published concert cache: concert:{id} -> Concert JSON
	KeyConcert = "concert:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLConcertCache = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
