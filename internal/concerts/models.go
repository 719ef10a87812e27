package concerts

import "time"

type Concert struct {
	ID                    int64      `json:"id"`
	Title                 string     `json:"title"`
	Subtitle              string     `json:"subtitle"`
	Date                  time.Time  `json:"date"`
	TicketPrice           int64      `json:"ticket_price"` // cents
	Venue                 string     `json:"venue"`
	VenueAddress          string     `json:"venue_address"`
	City                  string     `json:"city"`
	State                 string     `json:"state"`
	Zip                   string     `json:"zip"`
	AdditionalInformation string     `json:"additional_information"`
	PublishedAt           *time.Time `json:"published_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func (c Concert) IsPublished() bool { return c.PublishedAt != nil }

type TicketState string

const (
	TicketAvailable TicketState = "available"
	TicketReserved  TicketState = "reserved"
	TicketSold      TicketState = "sold"
)

// Ticket is a single seat for a concert. Price is the concert's ticket
// price at the time the ticket was loaded.
type Ticket struct {
	ID            int64
	ConcertID     int64
	OrderID       *int64
	ReservedAt    *time.Time
	ReservationID string
	Price         int64
}

func (t Ticket) State() TicketState {
	switch {
	case t.OrderID != nil:
		return TicketSold
	case t.ReservedAt != nil:
		return TicketReserved
	default:
		return TicketAvailable
	}
}

func (t Ticket) Available() bool { return t.State() == TicketAvailable }

type Order struct {
	ID                 int64
	ConfirmationNumber string
	ConcertID          int64
	Email              string
	Amount             int64 // cents
	Tickets            []Ticket
	CreatedAt          time.Time
}

func (o Order) TicketQuantity() int { return len(o.Tickets) }

func sumPrices(tickets []Ticket) int64 {
	var total int64
	for _, t := range tickets {
		total += t.Price
	}
	return total
}
