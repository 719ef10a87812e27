package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements concerts.Store on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ concerts.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const concertColumns = `id, title, subtitle, date, ticket_price, venue, venue_address, city, state, zip,
	additional_information, published_at, created_at`

func scanConcert(row pgx.Row) (concerts.Concert, error) {
	var c concerts.Concert
	err := row.Scan(&c.ID, &c.Title, &c.Subtitle, &c.Date, &c.TicketPrice, &c.Venue, &c.VenueAddress,
		&c.City, &c.State, &c.Zip, &c.AdditionalInformation, &c.PublishedAt, &c.CreatedAt)
	return c, err
}

func (s *Store) CreateConcert(ctx context.Context, c concerts.Concert) (concerts.Concert, error) {
	const stmt = `
INSERT INTO concerts (title, subtitle, date, ticket_price, venue, venue_address, city, state, zip,
	additional_information, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + concertColumns

	out, err := scanConcert(s.q(ctx).QueryRow(ctx, stmt,
		c.Title, c.Subtitle, c.Date, c.TicketPrice, c.Venue, c.VenueAddress, c.City, c.State, c.Zip,
		c.AdditionalInformation, c.PublishedAt))
	if err != nil {
		return concerts.Concert{}, fmt.Errorf("create concert: %w", err)
	}
	return out, nil
}

func (s *Store) GetConcert(ctx context.Context, id int64) (concerts.Concert, error) {
	c, err := scanConcert(s.q(ctx).QueryRow(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return concerts.Concert{}, concerts.ErrConcertNotFound
		}
		return concerts.Concert{}, fmt.Errorf("get concert: %w", err)
	}
	return c, nil
}

func (s *Store) ListPublishedConcerts(ctx context.Context) ([]concerts.Concert, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT `+concertColumns+`
FROM concerts
WHERE published_at IS NOT NULL
ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	defer rows.Close()

	var out []concerts.Concert
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan concert: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) PublishConcert(ctx context.Context, id int64, at time.Time) (concerts.Concert, error) {
	c, err := scanConcert(s.q(ctx).QueryRow(ctx, `
UPDATE concerts SET published_at = COALESCE(published_at, $2)
WHERE id = $1
RETURNING `+concertColumns, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return concerts.Concert{}, concerts.ErrConcertNotFound
		}
		return concerts.Concert{}, fmt.Errorf("publish concert: %w", err)
	}
	return c, nil
}

func (s *Store) AddTickets(ctx context.Context, concertID int64, quantity int) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO tickets (concert_id) SELECT $1 FROM generate_series(1, $2::int)`, concertID, quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return concerts.ErrConcertNotFound
		}
		return fmt.Errorf("add tickets: %w", err)
	}
	return nil
}

func (s *Store) CountAvailableTickets(ctx context.Context, concertID int64) (int, error) {
	var n int
	err := s.q(ctx).QueryRow(ctx, `
SELECT COUNT(*) FROM tickets
WHERE concert_id = $1 AND order_id IS NULL AND reserved_at IS NULL`, concertID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

const ticketColumns = `t.id, t.concert_id, t.order_id, t.reserved_at, COALESCE(t.reservation_id::text, ''), c.ticket_price`

func scanTickets(rows pgx.Rows) ([]concerts.Ticket, error) {
	defer rows.Close()
	var out []concerts.Ticket
	for rows.Next() {
		var t concerts.Ticket
		if err := rows.Scan(&t.ID, &t.ConcertID, &t.OrderID, &t.ReservedAt, &t.ReservationID, &t.Price); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) FindAvailableTickets(ctx context.Context, concertID int64, quantity int) ([]concerts.Ticket, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT `+ticketColumns+`
FROM tickets t JOIN concerts c ON c.id = t.concert_id
WHERE t.concert_id = $1 AND t.order_id IS NULL AND t.reserved_at IS NULL
ORDER BY t.id
LIMIT $2`, concertID, quantity)
	if err != nil {
		return nil, fmt.Errorf("find tickets: %w", err)
	}
	return scanTickets(rows)
}

// ReserveTickets claims rows with a single conditional UPDATE. Rows locked
// by a concurrent reservation are skipped, so two buyers never hold the
// same ticket. The pick lives in a CTE so it runs exactly once.
func (s *Store) ReserveTickets(ctx context.Context, concertID int64, quantity int, reservationID string, at time.Time) ([]concerts.Ticket, error) {
	const stmt = `
WITH picked AS (
	SELECT id FROM tickets
	WHERE concert_id = $1 AND order_id IS NULL AND reserved_at IS NULL
	ORDER BY id
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE tickets t
SET reserved_at = $4, reservation_id = $3::uuid, completing_at = NULL
FROM picked p, concerts c
WHERE t.id = p.id AND c.id = t.concert_id
RETURNING ` + ticketColumns

	var out []concerts.Ticket
	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		rows, err := s.q(ctx).Query(ctx, stmt, concertID, quantity, reservationID, at)
		if err != nil {
			return fmt.Errorf("reserve tickets: %w", err)
		}
		out, err = scanTickets(rows)
		if err != nil {
			return err
		}
		if len(out) != quantity {
			return concerts.ErrNotEnoughTickets
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) HoldForCompletion(ctx context.Context, reservationID string, at time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `
UPDATE tickets SET reserved_at = $2, completing_at = $2
WHERE reservation_id = $1::uuid AND order_id IS NULL AND reserved_at IS NOT NULL`, reservationID, at)
	if err != nil {
		return 0, fmt.Errorf("hold reservation: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ReleaseTickets(ctx context.Context, reservationID string) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `
UPDATE tickets SET reserved_at = NULL, reservation_id = NULL, completing_at = NULL
WHERE reservation_id = $1::uuid AND order_id IS NULL`, reservationID)
	if err != nil {
		return 0, fmt.Errorf("release tickets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ReleaseReservationsBefore(ctx context.Context, cutoff, completingBefore time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `
UPDATE tickets SET reserved_at = NULL, reservation_id = NULL, completing_at = NULL
WHERE order_id IS NULL AND reserved_at IS NOT NULL AND reserved_at < $1
  AND (completing_at IS NULL OR completing_at < $2)`, cutoff, completingBefore)
	if err != nil {
		return 0, fmt.Errorf("release stale reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateOrder(ctx context.Context, o concerts.Order, reservationID string) (concerts.Order, error) {
	ids := make([]int64, 0, len(o.Tickets))
	for _, t := range o.Tickets {
		ids = append(ids, t.ID)
	}
	var holder any
	if reservationID != "" {
		holder = reservationID
	}

	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		err := s.q(ctx).QueryRow(ctx, `
INSERT INTO orders (confirmation_number, concert_id, email, amount)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`, o.ConfirmationNumber, o.ConcertID, o.Email, o.Amount).Scan(&o.ID, &o.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("confirmation number %s already used: %w", o.ConfirmationNumber, err)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		tag, err := s.q(ctx).Exec(ctx, `
UPDATE tickets SET order_id = $1, reserved_at = NULL, reservation_id = NULL, completing_at = NULL
WHERE id = ANY($2) AND concert_id = $3 AND order_id IS NULL
  AND ((reservation_id IS NULL AND reserved_at IS NULL) OR reservation_id = $4::uuid)`,
			o.ID, ids, o.ConcertID, holder)
		if err != nil {
			return fmt.Errorf("claim tickets: %w", err)
		}
		if tag.RowsAffected() != int64(len(ids)) {
			return concerts.ErrTicketsUnavailable
		}
		return nil
	})
	if err != nil {
		return concerts.Order{}, err
	}

	sold := make([]concerts.Ticket, len(o.Tickets))
	for i, t := range o.Tickets {
		orderID := o.ID
		t.OrderID = &orderID
		t.ReservedAt = nil
		t.ReservationID = ""
		sold[i] = t
	}
	o.Tickets = sold
	return o, nil
}

const orderColumns = `id, confirmation_number::text, concert_id, email, amount, created_at`

func (s *Store) OrdersFor(ctx context.Context, concertID int64, email string) ([]concerts.Order, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE concert_id = $1 AND email = $2
ORDER BY id`, concertID, email)
	if err != nil {
		return nil, fmt.Errorf("orders for: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (concerts.Order, error) {
		var o concerts.Order
		err := row.Scan(&o.ID, &o.ConfirmationNumber, &o.ConcertID, &o.Email, &o.Amount, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if err := s.attachTickets(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrderByConfirmation(ctx context.Context, concertID int64, confirmationNumber string) (concerts.Order, error) {
	var o concerts.Order
	err := s.q(ctx).QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE concert_id = $1 AND confirmation_number = $2::uuid`, concertID, confirmationNumber).
		Scan(&o.ID, &o.ConfirmationNumber, &o.ConcertID, &o.Email, &o.Amount, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return concerts.Order{}, concerts.ErrOrderNotFound
		}
		return concerts.Order{}, fmt.Errorf("get order: %w", err)
	}
	orders := []concerts.Order{o}
	if err := s.attachTickets(ctx, orders); err != nil {
		return concerts.Order{}, err
	}
	return orders[0], nil
}

func (s *Store) attachTickets(ctx context.Context, orders []concerts.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	pos := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		pos[o.ID] = i
	}

	rows, err := s.q(ctx).Query(ctx, `
SELECT `+ticketColumns+`
FROM tickets t JOIN concerts c ON c.id = t.concert_id
WHERE t.order_id = ANY($1)
ORDER BY t.id`, ids)
	if err != nil {
		return fmt.Errorf("load order tickets: %w", err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		i := pos[*t.OrderID]
		orders[i].Tickets = append(orders[i].Tickets, t)
	}
	return nil
}
