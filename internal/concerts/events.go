package concerts

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced = "OrderPlaced"

	TopicOrderPlaced = "concert.order.placed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // confirmation number
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID            int64  `json:"order_id"`
	ConfirmationNumber string `json:"confirmation_number"`
	ConcertID          int64  `json:"concert_id"`
	ConcertTitle       string `json:"concert_title"`
	ConcertDate        string `json:"concert_date"`
	Email              string `json:"email"`
	TicketQuantity     int    `json:"ticket_quantity"`
	AmountCents        int64  `json:"amount_cents"`
}

// PartitionKey keeps every event of one order on one partition.
func PartitionKey(confirmationNumber string) []byte { return []byte(confirmationNumber) }
