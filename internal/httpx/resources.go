package httpx

import (
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
)

type concertResource struct {
	ID                    int64      `json:"id"`
	Title                 string     `json:"title"`
	Subtitle              string     `json:"subtitle"`
	Venue                 string     `json:"venue"`
	Date                  time.Time  `json:"date"`
	FormattedDate         string     `json:"formatted_date"`
	FormattedStartTime    string     `json:"formatted_start_time"`
	TicketPrice           int64      `json:"ticket_price"`
	TicketPriceInDollars  string     `json:"ticket_price_in_dollars"`
	VenueAddress          string     `json:"venue_address"`
	City                  string     `json:"city"`
	State                 string     `json:"state"`
	Zip                   string     `json:"zip"`
	AdditionalInformation string     `json:"additional_information"`
	PublishedAt           *time.Time `json:"published_at"`
	TicketsRemaining      *int       `json:"tickets_remaining,omitempty"`
}

func toConcertResource(c concerts.Concert) concertResource {
	return concertResource{
		ID:                    c.ID,
		Title:                 c.Title,
		Subtitle:              c.Subtitle,
		Venue:                 c.Venue,
		Date:                  c.Date,
		FormattedDate:         c.FormattedDate(),
		FormattedStartTime:    c.FormattedStartTime(),
		TicketPrice:           c.TicketPrice,
		TicketPriceInDollars:  c.TicketPriceInDollars(),
		VenueAddress:          c.VenueAddress,
		City:                  c.City,
		State:                 c.State,
		Zip:                   c.Zip,
		AdditionalInformation: c.AdditionalInformation,
		PublishedAt:           c.PublishedAt,
	}
}

type orderResource struct {
	ConfirmationNumber string `json:"confirmation_number"`
	Email              string `json:"email"`
	TicketQuantity     int    `json:"ticket_quantity"`
	Amount             int64  `json:"amount"`
}

func toOrderResource(o concerts.Order) orderResource {
	return orderResource{
		ConfirmationNumber: o.ConfirmationNumber,
		Email:              o.Email,
		TicketQuantity:     o.TicketQuantity(),
		Amount:             o.Amount,
	}
}

type dataEnvelope struct {
	Data any `json:"data"`
}
