package concerts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/billing"
	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/ariefcatur/go-concert-tickets/internal/concerts/concertstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *concertstest.Store
	gateway *billing.FakePaymentGateway
	svc     *concerts.Service
}

func newFixture(opts ...concerts.Option) fixture {
	store := concertstest.New()
	gw := billing.NewFakePaymentGateway()
	return fixture{store: store, gateway: gw, svc: concerts.NewService(store, gw, opts...)}
}

func (f fixture) purchase(concertID int64, email string, qty int) (concerts.Order, error) {
	return f.svc.PurchaseTickets(context.Background(), concerts.PurchaseInput{
		ConcertID:    concertID,
		Email:        email,
		Quantity:     qty,
		PaymentToken: f.gateway.ValidTestToken(),
	})
}

func remaining(t *testing.T, f fixture, concertID int64) int {
	t.Helper()
	n, err := f.svc.TicketsRemaining(context.Background(), concertID)
	require.NoError(t, err)
	return n
}

func TestAddTicketsIncreasesRemaining(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 0)

	require.NoError(t, f.svc.AddTickets(context.Background(), c.ID, 50))
	assert.Equal(t, 50, remaining(t, f, c.ID))

	assert.ErrorIs(t, f.svc.AddTickets(context.Background(), c.ID, 0), concerts.ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.AddTickets(context.Background(), 999, 1), concerts.ErrConcertNotFound)
}

func TestOrderTicketsCreatesOrder(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Price(3250)), 5)

	order, err := f.svc.OrderTickets(context.Background(), c.ID, "jane@example.com", 3)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", order.Email)
	assert.Equal(t, 3, order.TicketQuantity())
	assert.Equal(t, int64(9750), order.Amount)
	assert.NotEmpty(t, order.ConfirmationNumber)
	assert.Equal(t, 2, remaining(t, f, c.ID))

	has, err := f.svc.HasOrderFor(context.Background(), c.ID, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestOrderingMoreTicketsThanRemainFails(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 10)

	_, err := f.svc.OrderTickets(context.Background(), c.ID, "jane@example.com", 11)
	assert.ErrorIs(t, err, concerts.ErrNotEnoughTickets)

	has, err := f.svc.HasOrderFor(context.Background(), c.ID, "jane@example.com")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, 10, remaining(t, f, c.ID))
}

func TestCannotOrderTicketsAlreadyPurchased(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 10)

	_, err := f.svc.OrderTickets(context.Background(), c.ID, "jane@example.com", 8)
	require.NoError(t, err)

	_, err = f.svc.OrderTickets(context.Background(), c.ID, "john@example.com", 3)
	assert.ErrorIs(t, err, concerts.ErrNotEnoughTickets)

	has, _ := f.svc.HasOrderFor(context.Background(), c.ID, "john@example.com")
	assert.False(t, has)
	assert.Equal(t, 2, remaining(t, f, c.ID))
}

func TestOrderTicketsRollsBackWhenOrderInsertFails(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)
	f.store.CreateOrderErr = errors.New("boom")

	_, err := f.svc.OrderTickets(context.Background(), c.ID, "jane@example.com", 2)
	require.Error(t, err)

	assert.Equal(t, 3, remaining(t, f, c.ID))
	for _, tk := range f.store.Tickets(c.ID) {
		assert.Equal(t, concerts.TicketAvailable, tk.State())
	}
}

func TestFindTickets(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	tickets, err := f.svc.FindTickets(context.Background(), c.ID, 2)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	// finding does not hold anything
	assert.Equal(t, 3, remaining(t, f, c.ID))

	_, err = f.svc.FindTickets(context.Background(), c.ID, 4)
	assert.ErrorIs(t, err, concerts.ErrNotEnoughTickets)
}

func TestCreateOrderFromFoundTickets(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Price(1200)), 3)

	tickets, err := f.svc.FindTickets(context.Background(), c.ID, 3)
	require.NoError(t, err)

	order, err := f.svc.CreateOrder(context.Background(), c.ID, "jane@example.com", tickets)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), order.Amount)
	assert.Equal(t, 3, order.TicketQuantity())

	// the same tickets cannot be sold twice
	_, err = f.svc.CreateOrder(context.Background(), c.ID, "john@example.com", tickets)
	assert.ErrorIs(t, err, concerts.ErrTicketsUnavailable)
}

func TestReservedTicketsAreNotAvailable(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 2, "jane@example.com")
	require.NoError(t, err)

	assert.Len(t, r.Tickets(), 2)
	assert.Equal(t, "jane@example.com", r.Email())
	assert.Equal(t, 1, remaining(t, f, c.ID))
	for _, tk := range r.Tickets() {
		assert.Equal(t, concerts.TicketReserved, tk.State())
		assert.Equal(t, r.ID(), tk.ReservationID)
	}
}

func TestCannotReserveTicketsAlreadyReservedOrPurchased(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	_, err := f.svc.OrderTickets(context.Background(), c.ID, "jane@example.com", 1)
	require.NoError(t, err)
	_, err = f.svc.ReserveTickets(context.Background(), c.ID, 1, "jane@example.com")
	require.NoError(t, err)

	_, err = f.svc.ReserveTickets(context.Background(), c.ID, 2, "john@example.com")
	assert.ErrorIs(t, err, concerts.ErrNotEnoughTickets)
	assert.Equal(t, 1, remaining(t, f, c.ID))
}

func TestReservationTotalCost(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Price(1200)), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 3, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), r.TotalCost())
}

func TestCancellingReservationReleasesTickets(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 3, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, 0, remaining(t, f, c.ID))

	require.NoError(t, r.Cancel(context.Background()))
	assert.Equal(t, 3, remaining(t, f, c.ID))
}

func TestCompletingReservation(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Price(1200)), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 3, "jane@example.com")
	require.NoError(t, err)

	order, err := r.Complete(context.Background(), f.gateway, f.gateway.ValidTestToken())
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", order.Email)
	assert.Equal(t, 3, order.TicketQuantity())
	assert.Equal(t, int64(3600), order.Amount)
	assert.Equal(t, r.TotalCost(), f.gateway.TotalCharges())

	for _, tk := range f.store.Tickets(c.ID) {
		assert.Equal(t, concerts.TicketSold, tk.State())
		assert.Nil(t, tk.ReservedAt, "sold ticket keeps no reservation stamp")
		assert.Empty(t, tk.ReservationID)
	}
}

func TestCompletingReservationWithBadTokenWritesNothing(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 2, "jane@example.com")
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), f.gateway, "invalid-payment-token")
	assert.ErrorIs(t, err, concerts.ErrPaymentFailed)
	assert.Zero(t, f.store.OrderCount(c.ID))
	assert.Zero(t, f.gateway.TotalCharges())
}

func TestPurchaseTicketsChargesPriceTimesQuantity(t *testing.T) {
	tests := []struct {
		price int64
		qty   int
	}{
		{3250, 3},
		{2000, 1},
		{1, 10},
		{99999, 2},
	}
	for _, tt := range tests {
		f := newFixture()
		c := f.store.Seed(t, concertstest.Concert(concertstest.Published, concertstest.Price(tt.price)), 10)

		order, err := f.purchase(c.ID, "john@example.com", tt.qty)
		require.NoError(t, err)

		want := tt.price * int64(tt.qty)
		assert.Equal(t, want, order.Amount)
		assert.Equal(t, want, f.gateway.TotalCharges())
		assert.Equal(t, tt.qty, order.TicketQuantity())
		assert.Equal(t, 10-tt.qty, remaining(t, f, c.ID))
	}
}

func TestPurchaseFromUnpublishedConcertFails(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Unpublished), 3)

	_, err := f.purchase(c.ID, "john@example.com", 3)
	assert.ErrorIs(t, err, concerts.ErrConcertNotFound)
	assert.Zero(t, f.store.OrderCount(c.ID))
	assert.Zero(t, f.gateway.TotalCharges())
	assert.Equal(t, 3, remaining(t, f, c.ID))
}

func TestPurchaseWithInvalidTokenReleasesTickets(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 10)

	_, err := f.svc.PurchaseTickets(context.Background(), concerts.PurchaseInput{
		ConcertID:    c.ID,
		Email:        "john@example.com",
		Quantity:     3,
		PaymentToken: "invalid-payment-token",
	})
	assert.ErrorIs(t, err, concerts.ErrPaymentFailed)

	has, _ := f.svc.HasOrderFor(context.Background(), c.ID, "john@example.com")
	assert.False(t, has)
	assert.Equal(t, 10, remaining(t, f, c.ID))
}

func TestPurchaseRejectsBadQuantity(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 10)

	_, err := f.purchase(c.ID, "john@example.com", 0)
	assert.ErrorIs(t, err, concerts.ErrInvalidQuantity)
}

func TestCannotBuyTicketsAnotherCustomerIsPurchasing(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published, concertstest.Price(1200)), 3)

	var hookErr error
	f.gateway.BeforeFirstCharge(func(gw *billing.FakePaymentGateway) {
		_, hookErr = f.purchase(c.ID, "personB@example.com", 1)

		has, _ := f.svc.HasOrderFor(context.Background(), c.ID, "personB@example.com")
		assert.False(t, has)
		assert.Zero(t, gw.TotalCharges())
	})

	order, err := f.purchase(c.ID, "personA@example.com", 3)
	require.NoError(t, err)

	assert.ErrorIs(t, hookErr, concerts.ErrNotEnoughTickets)
	assert.Equal(t, int64(3600), f.gateway.TotalCharges())
	assert.Equal(t, 3, order.TicketQuantity())

	orders, err := f.svc.OrdersFor(context.Background(), c.ID, "personA@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 3, orders[0].TicketQuantity())
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 5)

	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		soldOut  int
		otherErr []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.purchase(c.ID, "buyer@example.com", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, concerts.ErrNotEnoughTickets):
				soldOut++
			default:
				otherErr = append(otherErr, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, otherErr)
	assert.Equal(t, 5, success)
	assert.Equal(t, buyers-5, soldOut)
	assert.Equal(t, int64(5*2000), f.gateway.TotalCharges())
	assert.Equal(t, 5, f.store.OrderCount(c.ID))
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	return v, ok, nil
}

func (m *memIdempotency) Remember(_ context.Context, key, conf string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = conf
	return nil
}

func TestPurchaseWithIdempotencyKeyReplaysOrder(t *testing.T) {
	idem := &memIdempotency{keys: map[string]string{}}
	f := newFixture(concerts.WithIdempotency(idem))
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 10)

	in := concerts.PurchaseInput{
		ConcertID:      c.ID,
		Email:          "john@example.com",
		Quantity:       2,
		PaymentToken:   f.gateway.ValidTestToken(),
		IdempotencyKey: "retry-1",
	}
	first, err := f.svc.PurchaseTickets(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.PurchaseTickets(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ConfirmationNumber, second.ConfirmationNumber)
	assert.Equal(t, 2, second.TicketQuantity())
	assert.Equal(t, int64(4000), f.gateway.TotalCharges())
	assert.Equal(t, 8, remaining(t, f, c.ID))
}

func TestIdempotencyKeyIsScopedToBuyerAndConcert(t *testing.T) {
	idem := &memIdempotency{keys: map[string]string{}}
	f := newFixture(concerts.WithIdempotency(idem))
	first := f.store.Seed(t, concertstest.Concert(concertstest.Published), 10)
	second := f.store.Seed(t, concertstest.Concert(concertstest.Published), 10)

	buy := func(concertID int64, email string) concerts.Order {
		t.Helper()
		o, err := f.svc.PurchaseTickets(context.Background(), concerts.PurchaseInput{
			ConcertID:      concertID,
			Email:          email,
			Quantity:       1,
			PaymentToken:   f.gateway.ValidTestToken(),
			IdempotencyKey: "shared-key",
		})
		require.NoError(t, err)
		return o
	}

	john := buy(first.ID, "john@example.com")
	jane := buy(first.ID, "jane@example.com")
	other := buy(second.ID, "john@example.com")
	again := buy(first.ID, "JOHN@example.com")

	assert.NotEqual(t, john.ConfirmationNumber, jane.ConfirmationNumber)
	assert.Equal(t, "jane@example.com", jane.Email)
	assert.NotEqual(t, john.ConfirmationNumber, other.ConfirmationNumber)
	assert.Equal(t, second.ID, other.ConcertID)
	assert.Equal(t, john.ConfirmationNumber, again.ConfirmationNumber)
	assert.Len(t, f.gateway.Charges(), 3)
	assert.Equal(t, 8, remaining(t, f, first.ID))
	assert.Equal(t, 9, remaining(t, f, second.ID))
}

type recordingEvents struct {
	mu     sync.Mutex
	events []concerts.OrderPlacedPayload
}

func (r *recordingEvents) PublishOrderPlaced(_ context.Context, p concerts.OrderPlacedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return nil
}

func TestPurchasePublishesOrderPlaced(t *testing.T) {
	events := &recordingEvents{}
	f := newFixture(concerts.WithEvents(events))
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published, concertstest.Price(1500)), 4)

	order, err := f.purchase(c.ID, "john@example.com", 2)
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, order.ConfirmationNumber, ev.ConfirmationNumber)
	assert.Equal(t, c.ID, ev.ConcertID)
	assert.Equal(t, "Example Band", ev.ConcertTitle)
	assert.Equal(t, 2, ev.TicketQuantity)
	assert.Equal(t, int64(3000), ev.AmountCents)
}

type memCache struct {
	mu          sync.Mutex
	items       map[int64]concerts.Concert
	gets, sets  int
	invalidated []int64
}

func (m *memCache) Get(_ context.Context, id int64) (concerts.Concert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.items[id]
	return c, ok, nil
}

func (m *memCache) Set(_ context.Context, c concerts.Concert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.items[c.ID] = c
	return nil
}

func (m *memCache) Invalidate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	m.invalidated = append(m.invalidated, id)
	return nil
}

func TestGetPublishedConcertUsesCache(t *testing.T) {
	cache := &memCache{items: map[int64]concerts.Concert{}}
	f := newFixture(concerts.WithCache(cache))
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 0)

	_, err := f.svc.GetPublishedConcert(context.Background(), c.ID)
	require.NoError(t, err)
	got, err := f.svc.GetPublishedConcert(context.Background(), c.ID)
	require.NoError(t, err)

	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 2, cache.gets)
}

func TestPublishConcert(t *testing.T) {
	cache := &memCache{items: map[int64]concerts.Concert{}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(concerts.WithCache(cache), concerts.WithClock(func() time.Time { return now }))
	c := f.store.Seed(t, concertstest.Concert(), 0)

	_, err := f.svc.GetPublishedConcert(context.Background(), c.ID)
	assert.ErrorIs(t, err, concerts.ErrConcertNotFound)

	published, err := f.svc.PublishConcert(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, now, *published.PublishedAt)
	assert.Equal(t, []int64{c.ID}, cache.invalidated)

	now = now.Add(time.Hour)
	again, err := f.svc.PublishConcert(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, *published.PublishedAt, *again.PublishedAt)

	list, err := f.svc.ListPublishedConcerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateConcertValidates(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateConcert(context.Background(), concertstest.Concert(func(c *concerts.Concert) { c.Title = "  " }))
	assert.ErrorIs(t, err, concerts.ErrInvalidConcert)

	_, err = f.svc.CreateConcert(context.Background(), concertstest.Concert(concertstest.Price(-1)))
	assert.ErrorIs(t, err, concerts.ErrInvalidConcert)

	c, err := f.svc.CreateConcert(context.Background(), concertstest.Concert())
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.False(t, c.IsPublished())
}

func TestCreateConcertWithTickets(t *testing.T) {
	f := newFixture()

	c, err := f.svc.CreateConcertWithTickets(context.Background(), concertstest.Concert(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, remaining(t, f, c.ID))
}

func TestCreateConcertWithTicketsRollsBackWhenTicketsFail(t *testing.T) {
	f := newFixture()
	f.store.AddTicketsErr = errors.New("disk full")

	_, err := f.svc.CreateConcertWithTickets(context.Background(), concertstest.Concert(), 25)
	require.Error(t, err)

	_, err = f.store.GetConcert(context.Background(), 1)
	assert.ErrorIs(t, err, concerts.ErrConcertNotFound, "no concert is left behind without its tickets")

	f.store.AddTicketsErr = nil
	_, err = f.svc.CreateConcertWithTickets(context.Background(), concertstest.Concert(), 0)
	assert.ErrorIs(t, err, concerts.ErrInvalidQuantity)
	_, err = f.store.GetConcert(context.Background(), 1)
	assert.ErrorIs(t, err, concerts.ErrConcertNotFound)
}

func TestReleaseStaleReservations(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(concerts.WithClock(func() time.Time { return now }))
	c := f.store.Seed(t, concertstest.Concert(), 5)

	_, err := f.svc.ReserveTickets(context.Background(), c.ID, 2, "old@example.com")
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = f.svc.ReserveTickets(context.Background(), c.ID, 1, "new@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, remaining(t, f, c.ID))

	now = now.Add(3 * time.Minute)
	n, err := f.svc.ReleaseStaleReservations(context.Background(), 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n)
	assert.Equal(t, 4, remaining(t, f, c.ID))
}

func TestStaleSweepDuringChargeKeepsTheHold(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published, concertstest.Price(1200)), 3)

	var (
		released int64
		sweepErr error
		otherErr error
	)
	f.gateway.BeforeFirstCharge(func(*billing.FakePaymentGateway) {
		released, sweepErr = f.svc.ReleaseStaleReservations(context.Background(), 0)
		_, otherErr = f.purchase(c.ID, "personB@example.com", 3)
	})

	order, err := f.purchase(c.ID, "personA@example.com", 3)
	require.NoError(t, err)
	require.NoError(t, sweepErr)

	assert.Zero(t, released)
	assert.ErrorIs(t, otherErr, concerts.ErrNotEnoughTickets)
	assert.Equal(t, 3, order.TicketQuantity())
	assert.Equal(t, []int64{3600}, f.gateway.Charges())
	assert.Equal(t, 1, f.store.OrderCount(c.ID))
}

func TestCompletingLostHoldChargesNothing(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(), 3)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 3, "jane@example.com")
	require.NoError(t, err)
	n, err := f.svc.ReleaseStaleReservations(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	_, err = r.Complete(context.Background(), f.gateway, f.gateway.ValidTestToken())
	assert.ErrorIs(t, err, concerts.ErrTicketsUnavailable)
	assert.Zero(t, f.gateway.TotalCharges())
	assert.Zero(t, f.store.OrderCount(c.ID))
	assert.Equal(t, 3, remaining(t, f, c.ID))
}

func TestAbandonedCompletionIsEventuallySwept(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(concerts.WithClock(func() time.Time { return now }))
	c := f.store.Seed(t, concertstest.Concert(), 2)

	r, err := f.svc.ReserveTickets(context.Background(), c.ID, 2, "jane@example.com")
	require.NoError(t, err)
	held, err := f.store.HoldForCompletion(context.Background(), r.ID(), now)
	require.NoError(t, err)
	require.Equal(t, int64(2), held)

	now = now.Add(11 * time.Minute)
	n, err := f.svc.ReleaseStaleReservations(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "completing holds outlive the reservation ttl")

	now = now.Add(5 * time.Minute)
	n, err = f.svc.ReleaseStaleReservations(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, remaining(t, f, c.ID))
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	c := f.store.Seed(t, concertstest.Concert(concertstest.Published), 5)

	order, err := f.purchase(c.ID, "john@example.com", 2)
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), c.ID, order.ConfirmationNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, 2, got.TicketQuantity())

	_, err = f.svc.GetOrder(context.Background(), c.ID, "not-a-uuid")
	assert.ErrorIs(t, err, concerts.ErrOrderNotFound)
	_, err = f.svc.GetOrder(context.Background(), c.ID+1, order.ConfirmationNumber)
	assert.ErrorIs(t, err, concerts.ErrOrderNotFound)
}
