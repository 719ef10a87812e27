package concerts

import (
	"errors"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
)

var (
	ErrConcertNotFound    = errors.New("concert not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotEnoughTickets   = errors.New("not enough tickets remaining")
	ErrTicketsUnavailable = errors.New("tickets no longer available")
	ErrInvalidQuantity    = errors.New("ticket quantity must be at least 1")
	ErrInvalidConcert     = errors.New("invalid concert")

	// ErrPaymentFailed is billing's sentinel so callers need only one errors.Is.
	ErrPaymentFailed = billing.ErrPaymentFailed
)
