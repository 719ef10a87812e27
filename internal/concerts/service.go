package concerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/ariefcatur/go-concert-tickets/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// completionGrace is how long a hold marked as completing survives the
// stale sweep. It bounds a crashed purchase, not a slow one.
const completionGrace = 15 * time.Minute

const (
	ChannelWeb       = "web"
	ChannelBoxOffice = "box_office"
)

type Service struct {
	store   Store
	gateway billing.PaymentGateway
	cache   ConcertCache
	idem    Idempotency
	events  OrderEvents
	now     func() time.Time
	log     *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Service)

func WithCache(c ConcertCache) Option       { return func(s *Service) { s.cache = c } }
func WithIdempotency(i Idempotency) Option  { return func(s *Service) { s.idem = i } }
func WithEvents(e OrderEvents) Option       { return func(s *Service) { s.events = e } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.log = l } }

func NewService(store Store, gateway billing.PaymentGateway, opts ...Option) *Service {
	s := &Service{
		store:   store,
		gateway: meteredGateway{next: gateway},
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
		tracer:  otel.Tracer("github.com/ariefcatur/go-concert-tickets/internal/concerts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PurchaseInput struct {
	ConcertID      int64
	Email          string
	Quantity       int
	PaymentToken   string
	IdempotencyKey string
	TraceID        string
}

// idempotencyKey scopes the client key to the concert and buyer, so a key
// reused by another customer or for another concert starts a new purchase.
func (in PurchaseInput) idempotencyKey() string {
	if in.IdempotencyKey == "" {
		return ""
	}
	return strconv.FormatInt(in.ConcertID, 10) + ":" + strings.ToLower(in.Email) + ":" + in.IdempotencyKey
}

func (s *Service) CreateConcert(ctx context.Context, c Concert) (Concert, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return Concert{}, fmt.Errorf("%w: title is required", ErrInvalidConcert)
	}
	if c.TicketPrice < 0 {
		return Concert{}, fmt.Errorf("%w: ticket price must not be negative", ErrInvalidConcert)
	}
	if c.Date.IsZero() {
		return Concert{}, fmt.Errorf("%w: date is required", ErrInvalidConcert)
	}
	return s.store.CreateConcert(ctx, c)
}

// PublishConcert makes a concert visible to customers. Publishing twice
// keeps the first timestamp.
func (s *Service) PublishConcert(ctx context.Context, id int64) (Concert, error) {
	c, err := s.store.PublishConcert(ctx, id, s.now())
	if err != nil {
		return Concert{}, err
	}
	s.invalidate(ctx, id)
	return c, nil
}

// GetPublishedConcert treats unpublished concerts as missing.
func (s *Service) GetPublishedConcert(ctx context.Context, id int64) (Concert, error) {
	if s.cache != nil {
		c, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("concert cache get failed", "concert_id", id, "err", err)
		} else if ok && c.IsPublished() {
			return c, nil
		}
	}

	c, err := s.store.GetConcert(ctx, id)
	if err != nil {
		return Concert{}, err
	}
	if !c.IsPublished() {
		return Concert{}, ErrConcertNotFound
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			s.log.Warn("concert cache set failed", "concert_id", id, "err", err)
		}
	}
	return c, nil
}

func (s *Service) GetConcert(ctx context.Context, id int64) (Concert, error) {
	return s.store.GetConcert(ctx, id)
}

func (s *Service) ListPublishedConcerts(ctx context.Context) ([]Concert, error) {
	return s.store.ListPublishedConcerts(ctx)
}

func (s *Service) AddTickets(ctx context.Context, concertID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if _, err := s.store.GetConcert(ctx, concertID); err != nil {
		return err
	}
	return s.store.AddTickets(ctx, concertID, quantity)
}

// CreateConcertWithTickets creates a concert and its initial tickets
// atomically.
func (s *Service) CreateConcertWithTickets(ctx context.Context, c Concert, quantity int) (Concert, error) {
	var created Concert
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.CreateConcert(ctx, c)
		if err != nil {
			return err
		}
		return s.AddTickets(ctx, created.ID, quantity)
	})
	if err != nil {
		return Concert{}, err
	}
	return created, nil
}

func (s *Service) TicketsRemaining(ctx context.Context, concertID int64) (int, error) {
	return s.store.CountAvailableTickets(ctx, concertID)
}

func (s *Service) FindTickets(ctx context.Context, concertID int64, quantity int) ([]Ticket, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	tickets, err := s.store.FindAvailableTickets(ctx, concertID, quantity)
	if err != nil {
		return nil, err
	}
	if len(tickets) < quantity {
		return nil, ErrNotEnoughTickets
	}
	return tickets, nil
}

// ReserveTickets holds quantity tickets for email. Either every ticket is
// held or none is.
func (s *Service) ReserveTickets(ctx context.Context, concertID int64, quantity int, email string) (*Reservation, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	id := uuid.NewString()
	tickets, err := s.store.ReserveTickets(ctx, concertID, quantity, id, s.now())
	if err != nil {
		return nil, err
	}
	metrics.TicketsReserved(strconv.FormatInt(concertID, 10), len(tickets))
	r := NewReservation(id, concertID, email, tickets, s.store)
	r.now = s.now
	return r, nil
}

// CreateOrder sells the given available tickets to email.
func (s *Service) CreateOrder(ctx context.Context, concertID int64, email string, tickets []Ticket) (Order, error) {
	return s.store.CreateOrder(ctx, Order{
		ConfirmationNumber: uuid.NewString(),
		ConcertID:          concertID,
		Email:              email,
		Amount:             sumPrices(tickets),
		Tickets:            tickets,
	}, "")
}

// OrderTickets sells tickets without payment (box office). Selection and
// order creation share one transaction.
func (s *Service) OrderTickets(ctx context.Context, concertID int64, email string, quantity int) (Order, error) {
	concert, err := s.store.GetConcert(ctx, concertID)
	if err != nil {
		return Order{}, err
	}

	var order Order
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.ReserveTickets(ctx, concertID, quantity, email)
		if err != nil {
			return err
		}
		order, err = s.store.CreateOrder(ctx, Order{
			ConfirmationNumber: uuid.NewString(),
			ConcertID:          concertID,
			Email:              email,
			Amount:             r.TotalCost(),
			Tickets:            r.Tickets(),
		}, r.ID())
		return err
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderPlaced(ChannelBoxOffice)
	s.publishOrderPlaced(ctx, concert, order)
	return order, nil
}

// PurchaseTickets reserves tickets of a published concert, charges for
// them and records the order. A failed charge releases the reservation.
func (s *Service) PurchaseTickets(ctx context.Context, in PurchaseInput) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "concerts.PurchaseTickets", trace.WithAttributes(
		attribute.Int64("concert.id", in.ConcertID),
		attribute.Int("ticket.quantity", in.Quantity),
	))
	defer span.End()

	order, err := s.purchase(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}
	span.SetAttributes(attribute.String("order.confirmation_number", order.ConfirmationNumber))
	return order, nil
}

func (s *Service) purchase(ctx context.Context, in PurchaseInput) (Order, error) {
	if in.Quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}

	idemKey := in.idempotencyKey()
	if idemKey != "" && s.idem != nil {
		conf, ok, err := s.idem.Lookup(ctx, idemKey)
		if err != nil {
			s.log.Warn("idempotency lookup failed", "key", in.IdempotencyKey, "err", err)
		} else if ok {
			return s.GetOrder(ctx, in.ConcertID, conf)
		}
	}

	concert, err := s.GetPublishedConcert(ctx, in.ConcertID)
	if err != nil {
		return Order{}, err
	}

	reservation, err := s.ReserveTickets(ctx, concert.ID, in.Quantity, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotEnoughTickets) {
			metrics.PurchaseFailed("not_enough_tickets")
		}
		return Order{}, err
	}

	order, err := reservation.Complete(ctx, s.gateway, in.PaymentToken)
	if err != nil {
		reason := "order_failed"
		if errors.Is(err, ErrPaymentFailed) {
			reason = "payment_failed"
		}
		metrics.PurchaseFailed(reason)

		// the request may already be cancelled; the tickets still go back
		if cerr := reservation.Cancel(context.WithoutCancel(ctx)); cerr != nil {
			s.log.Error("cancel reservation failed", "reservation_id", reservation.ID(), "err", cerr)
		} else {
			metrics.TicketsReleased(reason, int64(len(reservation.Tickets())))
		}
		return Order{}, fmt.Errorf("complete reservation: %w", err)
	}

	metrics.OrderPlaced(ChannelWeb)
	s.log.Info("order placed",
		"concert_id", concert.ID,
		"confirmation_number", order.ConfirmationNumber,
		"ticket_quantity", order.TicketQuantity(),
		"amount", order.Amount,
		"trace_id", in.TraceID,
	)

	if idemKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, idemKey, order.ConfirmationNumber); err != nil {
			s.log.Warn("idempotency remember failed", "key", in.IdempotencyKey, "err", err)
		}
	}
	s.publishOrderPlaced(ctx, concert, order)
	return order, nil
}

func (s *Service) HasOrderFor(ctx context.Context, concertID int64, email string) (bool, error) {
	orders, err := s.store.OrdersFor(ctx, concertID, email)
	if err != nil {
		return false, err
	}
	return len(orders) > 0, nil
}

func (s *Service) OrdersFor(ctx context.Context, concertID int64, email string) ([]Order, error) {
	return s.store.OrdersFor(ctx, concertID, email)
}

func (s *Service) GetOrder(ctx context.Context, concertID int64, confirmationNumber string) (Order, error) {
	if _, err := uuid.Parse(confirmationNumber); err != nil {
		return Order{}, ErrOrderNotFound
	}
	return s.store.GetOrderByConfirmation(ctx, concertID, confirmationNumber)
}

// ReleaseStaleReservations frees tickets held longer than olderThan, such
// as holds left behind by a crashed request.
func (s *Service) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	n, err := s.store.ReleaseReservationsBefore(ctx, now.Add(-olderThan), now.Add(-max(olderThan, completionGrace)))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TicketsReleased("expired", n)
		s.log.Info("released stale reservations", "tickets", n, "older_than", olderThan.String())
	}
	return n, nil
}

func (s *Service) publishOrderPlaced(ctx context.Context, c Concert, o Order) {
	if s.events == nil {
		return
	}
	err := s.events.PublishOrderPlaced(ctx, OrderPlacedPayload{
		OrderID:            o.ID,
		ConfirmationNumber: o.ConfirmationNumber,
		ConcertID:          c.ID,
		ConcertTitle:       c.Title,
		ConcertDate:        c.FormattedDate(),
		Email:              o.Email,
		TicketQuantity:     o.TicketQuantity(),
		AmountCents:        o.Amount,
	})
	if err != nil {
		s.log.Error("publish order placed failed", "confirmation_number", o.ConfirmationNumber, "err", err)
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("concert cache invalidate failed", "concert_id", id, "err", err)
	}
}

type meteredGateway struct {
	next billing.PaymentGateway
}

func (g meteredGateway) Charge(ctx context.Context, amount int64, token string) error {
	start := time.Now()
	err := g.next.Charge(ctx, amount, token)
	result := "ok"
	switch {
	case errors.Is(err, billing.ErrPaymentFailed):
		result = "declined"
	case err != nil:
		result = "error"
	}
	metrics.ObservePayment(result, time.Since(start).Seconds())
	return err
}
