package kafka

import (
	"context"
	"time"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// OrderEvents wraps OrderPlaced payloads in a v1 envelope.
type OrderEvents struct {
	producer publisher
	service  string
}

var _ concerts.OrderEvents = (*OrderEvents)(nil)

func NewOrderEvents(p publisher, service string) *OrderEvents {
	return &OrderEvents{producer: p, service: service}
}

func (e *OrderEvents) PublishOrderPlaced(ctx context.Context, p concerts.OrderPlacedPayload) error {
	env := concerts.Envelope{
		EventID:       uuid.NewString(),
		EventType:     concerts.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.service,
		CorrelationID: p.ConfirmationNumber,
		Payload:       MustMarshal(p),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return e.producer.Publish(ctx, concerts.PartitionKey(p.ConfirmationNumber), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(concerts.EventOrderPlaced)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
