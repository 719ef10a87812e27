package notify

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
)

type OrderConfirmation struct {
	Email              string
	ConfirmationNumber string
	ConcertTitle       string
	ConcertDate        string
	TicketQuantity     int
	Amount             string // dollars, formatted
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
}

// LogMailer writes confirmations to the structured log instead of sending
// mail.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "order confirmation",
		"to", msg.Email,
		"confirmation_number", msg.ConfirmationNumber,
		"concert", msg.ConcertTitle,
		"date", msg.ConcertDate,
		"tickets", msg.TicketQuantity,
		"amount", msg.Amount,
	)
	return nil
}

func confirmationFor(p concerts.OrderPlacedPayload) OrderConfirmation {
	return OrderConfirmation{
		Email:              p.Email,
		ConfirmationNumber: p.ConfirmationNumber,
		ConcertTitle:       p.ConcertTitle,
		ConcertDate:        p.ConcertDate,
		TicketQuantity:     p.TicketQuantity,
		Amount:             concerts.FormatCents(p.AmountCents),
	}
}
