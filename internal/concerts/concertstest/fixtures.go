package concertstest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
)

// Concert returns a concert with sensible defaults. Apply overrides with
// the mutators.
func Concert(mut ...func(*concerts.Concert)) concerts.Concert {
	c := concerts.Concert{
		Title:                 "Example Band",
		Subtitle:              "with The Fake Openers",
		Date:                  time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Minute),
		TicketPrice:           2000,
		Venue:                 "The Example Theatre",
		VenueAddress:          "123 Example Lane",
		City:                  "Fakeville",
		State:                 "ON",
		Zip:                   "90210",
		AdditionalInformation: "Some sample additional information.",
	}
	for _, m := range mut {
		m(&c)
	}
	return c
}

func Published(c *concerts.Concert) {
	at := time.Now().UTC().Add(-7 * 24 * time.Hour)
	c.PublishedAt = &at
}

func Unpublished(c *concerts.Concert) { c.PublishedAt = nil }

func Price(cents int64) func(*concerts.Concert) {
	return func(c *concerts.Concert) { c.TicketPrice = cents }
}

// Seed stores c and gives it ticketCount available tickets.
func (s *Store) Seed(t testing.TB, c concerts.Concert, ticketCount int) concerts.Concert {
	t.Helper()
	ctx := context.Background()
	c, err := s.CreateConcert(ctx, c)
	if err != nil {
		t.Fatalf("seed concert: %v", err)
	}
	if ticketCount > 0 {
		if err := s.AddTickets(ctx, c.ID, ticketCount); err != nil {
			t.Fatalf("seed tickets: %v", err)
		}
	}
	return c
}
