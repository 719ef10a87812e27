package concerts

import (
	"context"
	"time"
)

// Store persists concerts, tickets and orders. Methods called inside
// WithTx share its transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateConcert(ctx context.Context, c Concert) (Concert, error)
	GetConcert(ctx context.Context, id int64) (Concert, error)
	ListPublishedConcerts(ctx context.Context) ([]Concert, error)
	PublishConcert(ctx context.Context, id int64, at time.Time) (Concert, error)

	AddTickets(ctx context.Context, concertID int64, quantity int) error
	CountAvailableTickets(ctx context.Context, concertID int64) (int, error)
	// FindAvailableTickets returns at most quantity available tickets.
	FindAvailableTickets(ctx context.Context, concertID int64, quantity int) ([]Ticket, error)
	// ReserveTickets holds exactly quantity available tickets under
	// reservationID or returns ErrNotEnoughTickets and holds nothing.
	ReserveTickets(ctx context.Context, concertID int64, quantity int, reservationID string, at time.Time) ([]Ticket, error)
	// HoldForCompletion refreshes the stamp of every ticket still held by
	// reservationID and marks it as completing. It returns how many
	// tickets are still held.
	HoldForCompletion(ctx context.Context, reservationID string, at time.Time) (int64, error)
	ReleaseTickets(ctx context.Context, reservationID string) (int64, error)
	// ReleaseReservationsBefore frees holds stamped before cutoff. Holds
	// marked as completing are freed only when marked before
	// completingBefore.
	ReleaseReservationsBefore(ctx context.Context, cutoff, completingBefore time.Time) (int64, error)

	// CreateOrder inserts o and assigns o.Tickets to it. Each ticket must be
	// either available or held by reservationID; otherwise nothing is
	// written and ErrTicketsUnavailable is returned. Claimed tickets lose
	// their reservation stamp.
	CreateOrder(ctx context.Context, o Order, reservationID string) (Order, error)
	OrdersFor(ctx context.Context, concertID int64, email string) ([]Order, error)
	GetOrderByConfirmation(ctx context.Context, concertID int64, confirmationNumber string) (Order, error)
}

// ConcertCache holds published concerts for the public read path.
type ConcertCache interface {
	Get(ctx context.Context, id int64) (Concert, bool, error)
	Set(ctx context.Context, c Concert) error
	Invalidate(ctx context.Context, id int64) error
}

// Idempotency maps a purchase key, already scoped to concert and buyer, to
// the confirmation number of the order it produced.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, confirmationNumber string) error
}

type OrderEvents interface {
	PublishOrderPlaced(ctx context.Context, p OrderPlacedPayload) error
}
