package concerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/google/uuid"
)

type reservationStore interface {
	HoldForCompletion(ctx context.Context, reservationID string, at time.Time) (int64, error)
	ReleaseTickets(ctx context.Context, reservationID string) (int64, error)
	CreateOrder(ctx context.Context, o Order, reservationID string) (Order, error)
}

// Reservation is a hold on tickets pending payment. It is not persisted as
// a row of its own; the held tickets carry its ID.
type Reservation struct {
	id        string
	concertID int64
	email     string
	tickets   []Ticket
	store     reservationStore
	now       func() time.Time
}

func NewReservation(id string, concertID int64, email string, tickets []Ticket, store reservationStore) *Reservation {
	return &Reservation{
		id:        id,
		concertID: concertID,
		email:     email,
		tickets:   tickets,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reservation) ID() string        { return r.id }
func (r *Reservation) ConcertID() int64  { return r.concertID }
func (r *Reservation) Email() string     { return r.email }
func (r *Reservation) Tickets() []Ticket { return r.tickets }

func (r *Reservation) TotalCost() int64 { return sumPrices(r.tickets) }

// Cancel returns every held ticket to the available pool.
func (r *Reservation) Cancel(ctx context.Context) error {
	if _, err := r.store.ReleaseTickets(ctx, r.id); err != nil {
		return fmt.Errorf("release reservation %s: %w", r.id, err)
	}
	return nil
}

// Complete charges TotalCost and turns the held tickets into an order.
// The hold is first marked as completing so the stale sweep leaves it
// alone while the charge is in flight. Nothing is charged when the hold
// has already been lost, and no order is written when the charge fails.
func (r *Reservation) Complete(ctx context.Context, gateway billing.PaymentGateway, paymentToken string) (Order, error) {
	held, err := r.store.HoldForCompletion(ctx, r.id, r.now())
	if err != nil {
		return Order{}, fmt.Errorf("hold reservation %s: %w", r.id, err)
	}
	if held != int64(len(r.tickets)) {
		return Order{}, ErrTicketsUnavailable
	}

	if err := gateway.Charge(ctx, r.TotalCost(), paymentToken); err != nil {
		return Order{}, err
	}
	return r.store.CreateOrder(ctx, Order{
		ConfirmationNumber: uuid.NewString(),
		ConcertID:          r.concertID,
		Email:              r.email,
		Amount:             r.TotalCost(),
		Tickets:            r.tickets,
	}, r.id)
}
