package notify

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-concert-tickets/internal/concerts"
	kafkax "github.com/ariefcatur/go-concert-tickets/internal/kafka"
	"github.com/ariefcatur/go-concert-tickets/internal/metrics"
	"github.com/ariefcatur/go-concert-tickets/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service sends order confirmations for OrderPlaced events.
type Service struct {
	Redis       *redis.Client
	Mailer      Mailer
	ServiceName string
}

// HandleOrderPlaced is installed as the consumer handler. Each event is
// mailed at most once per dedup window; a failed send releases the claim
// and returns an error so the consumer retries the message.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != concerts.EventOrderPlaced {
		return nil
	}

	claimed, err := redisx.Claim(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		metrics.NotificationSent("duplicate")
		return nil
	}

	p, err := kafkax.UnwrapPayload[concerts.OrderPlacedPayload](env.Payload)
	if err != nil {
		// poison message: keep the claim so it is not retried forever
		metrics.NotificationSent("invalid")
		return nil
	}

	if err := s.Mailer.SendOrderConfirmation(ctx, confirmationFor(p)); err != nil {
		_ = redisx.Unclaim(context.WithoutCancel(ctx), s.Redis, s.ServiceName, env.EventID)
		metrics.NotificationSent("failed")
		return fmt.Errorf("send confirmation %s: %w", p.ConfirmationNumber, err)
	}
	metrics.NotificationSent("sent")
	return nil
}
