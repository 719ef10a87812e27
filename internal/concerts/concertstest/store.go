// Package concertstest provides an in-memory concerts.Store for tests.
package concertstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
)

type txKey struct{}

type ticketRow struct {
	id            int64
	concertID     int64
	orderID       *int64
	reservedAt    *time.Time
	reservationID string
	completingAt  *time.Time
}

type state struct {
	nextConcertID int64
	nextTicketID  int64
	nextOrderID   int64
	concerts      map[int64]concerts.Concert
	tickets       []ticketRow
	orders        map[int64]concerts.Order
}

// Store keeps everything in memory. Operations are serialized; WithTx
// restores the previous state when fn fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	// CreateOrderErr, when set, is returned by CreateOrder before any write.
	CreateOrderErr error
	// AddTicketsErr, when set, is returned by AddTickets before any write.
	AddTicketsErr error
}

func New() *Store {
	return &Store{st: state{
		concerts: map[int64]concerts.Concert{},
		orders:   map[int64]concerts.Order{},
	}}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock serializes against running transactions unless ctx belongs to one.
func (s *Store) lock(ctx context.Context) func() {
	inTx := ctx.Value(txKey{}) != nil
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

func (s *Store) CreateConcert(ctx context.Context, c concerts.Concert) (concerts.Concert, error) {
	defer s.lock(ctx)()
	s.st.nextConcertID++
	c.ID = s.st.nextConcertID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.st.concerts[c.ID] = c
	return c, nil
}

func (s *Store) GetConcert(ctx context.Context, id int64) (concerts.Concert, error) {
	defer s.lock(ctx)()
	c, ok := s.st.concerts[id]
	if !ok {
		return concerts.Concert{}, concerts.ErrConcertNotFound
	}
	return c, nil
}

func (s *Store) ListPublishedConcerts(ctx context.Context) ([]concerts.Concert, error) {
	defer s.lock(ctx)()
	var out []concerts.Concert
	for _, c := range s.st.concerts {
		if c.IsPublished() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) PublishConcert(ctx context.Context, id int64, at time.Time) (concerts.Concert, error) {
	defer s.lock(ctx)()
	c, ok := s.st.concerts[id]
	if !ok {
		return concerts.Concert{}, concerts.ErrConcertNotFound
	}
	if c.PublishedAt == nil {
		c.PublishedAt = &at
		s.st.concerts[id] = c
	}
	return c, nil
}

func (s *Store) AddTickets(ctx context.Context, concertID int64, quantity int) error {
	defer s.lock(ctx)()
	if s.AddTicketsErr != nil {
		return s.AddTicketsErr
	}
	if _, ok := s.st.concerts[concertID]; !ok {
		return concerts.ErrConcertNotFound
	}
	for i := 0; i < quantity; i++ {
		s.st.nextTicketID++
		s.st.tickets = append(s.st.tickets, ticketRow{id: s.st.nextTicketID, concertID: concertID})
	}
	return nil
}

func (s *Store) CountAvailableTickets(ctx context.Context, concertID int64) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, t := range s.st.tickets {
		if t.concertID == concertID && t.available() {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindAvailableTickets(ctx context.Context, concertID int64, quantity int) ([]concerts.Ticket, error) {
	defer s.lock(ctx)()
	var out []concerts.Ticket
	for _, t := range s.st.tickets {
		if len(out) == quantity {
			break
		}
		if t.concertID == concertID && t.available() {
			out = append(out, s.toTicket(t))
		}
	}
	return out, nil
}

func (s *Store) ReserveTickets(ctx context.Context, concertID int64, quantity int, reservationID string, at time.Time) ([]concerts.Ticket, error) {
	defer s.lock(ctx)()
	var idx []int
	for i, t := range s.st.tickets {
		if len(idx) == quantity {
			break
		}
		if t.concertID == concertID && t.available() {
			idx = append(idx, i)
		}
	}
	if len(idx) < quantity {
		return nil, concerts.ErrNotEnoughTickets
	}
	out := make([]concerts.Ticket, 0, len(idx))
	for _, i := range idx {
		stamp := at
		s.st.tickets[i].reservedAt = &stamp
		s.st.tickets[i].reservationID = reservationID
		out = append(out, s.toTicket(s.st.tickets[i]))
	}
	return out, nil
}

func (s *Store) HoldForCompletion(ctx context.Context, reservationID string, at time.Time) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for i, t := range s.st.tickets {
		if t.reservationID == reservationID && t.orderID == nil && t.reservedAt != nil {
			stamp := at
			s.st.tickets[i].reservedAt = &stamp
			s.st.tickets[i].completingAt = &stamp
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseTickets(ctx context.Context, reservationID string) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for i, t := range s.st.tickets {
		if t.reservationID == reservationID && t.orderID == nil {
			s.st.tickets[i].release()
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseReservationsBefore(ctx context.Context, cutoff, completingBefore time.Time) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for i, t := range s.st.tickets {
		if t.orderID != nil || t.reservedAt == nil || !t.reservedAt.Before(cutoff) {
			continue
		}
		if t.completingAt != nil && !t.completingAt.Before(completingBefore) {
			continue
		}
		s.st.tickets[i].release()
		n++
	}
	return n, nil
}

func (s *Store) CreateOrder(ctx context.Context, o concerts.Order, reservationID string) (concerts.Order, error) {
	defer s.lock(ctx)()
	if s.CreateOrderErr != nil {
		return concerts.Order{}, s.CreateOrderErr
	}

	idx := make([]int, 0, len(o.Tickets))
	for _, want := range o.Tickets {
		i := s.indexOf(want.ID)
		if i < 0 {
			return concerts.Order{}, concerts.ErrTicketsUnavailable
		}
		t := s.st.tickets[i]
		claimable := t.orderID == nil &&
			((t.reservedAt == nil && t.reservationID == "") || (reservationID != "" && t.reservationID == reservationID))
		if !claimable {
			return concerts.Order{}, concerts.ErrTicketsUnavailable
		}
		idx = append(idx, i)
	}

	s.st.nextOrderID++
	o.ID = s.st.nextOrderID
	o.CreatedAt = time.Now().UTC()

	tickets := make([]concerts.Ticket, 0, len(idx))
	for _, i := range idx {
		id := o.ID
		s.st.tickets[i].release()
		s.st.tickets[i].orderID = &id
		tickets = append(tickets, s.toTicket(s.st.tickets[i]))
	}
	o.Tickets = nil
	s.st.orders[o.ID] = o
	o.Tickets = tickets
	return o, nil
}

func (s *Store) OrdersFor(ctx context.Context, concertID int64, email string) ([]concerts.Order, error) {
	defer s.lock(ctx)()
	var out []concerts.Order
	for _, o := range s.st.orders {
		if o.ConcertID == concertID && o.Email == email {
			out = append(out, s.withTickets(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetOrderByConfirmation(ctx context.Context, concertID int64, confirmationNumber string) (concerts.Order, error) {
	defer s.lock(ctx)()
	for _, o := range s.st.orders {
		if o.ConcertID == concertID && o.ConfirmationNumber == confirmationNumber {
			return s.withTickets(o), nil
		}
	}
	return concerts.Order{}, concerts.ErrOrderNotFound
}

// Tickets returns a copy of every ticket of a concert, for assertions.
func (s *Store) Tickets(concertID int64) []concerts.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []concerts.Ticket
	for _, t := range s.st.tickets {
		if t.concertID == concertID {
			out = append(out, s.toTicket(t))
		}
	}
	return out
}

// OrderCount is the number of orders for a concert across all emails.
func (s *Store) OrderCount(concertID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.st.orders {
		if o.ConcertID == concertID {
			n++
		}
	}
	return n
}

func (s *Store) indexOf(ticketID int64) int {
	for i, t := range s.st.tickets {
		if t.id == ticketID {
			return i
		}
	}
	return -1
}

func (s *Store) withTickets(o concerts.Order) concerts.Order {
	for _, t := range s.st.tickets {
		if t.orderID != nil && *t.orderID == o.ID {
			o.Tickets = append(o.Tickets, s.toTicket(t))
		}
	}
	return o
}

func (s *Store) toTicket(t ticketRow) concerts.Ticket {
	return concerts.Ticket{
		ID:            t.id,
		ConcertID:     t.concertID,
		OrderID:       t.orderID,
		ReservedAt:    t.reservedAt,
		ReservationID: t.reservationID,
		Price:         s.st.concerts[t.concertID].TicketPrice,
	}
}

func (t *ticketRow) release() {
	t.reservedAt = nil
	t.reservationID = ""
	t.completingAt = nil
}

func (t ticketRow) available() bool {
	return t.orderID == nil && t.reservedAt == nil
}

func (st state) clone() state {
	out := state{
		nextConcertID: st.nextConcertID,
		nextTicketID:  st.nextTicketID,
		nextOrderID:   st.nextOrderID,
		concerts:      make(map[int64]concerts.Concert, len(st.concerts)),
		tickets:       append([]ticketRow(nil), st.tickets...),
		orders:        make(map[int64]concerts.Order, len(st.orders)),
	}
	for k, v := range st.concerts {
		out.concerts[k] = v
	}
	for k, v := range st.orders {
		out.orders[k] = v
	}
	return out
}
