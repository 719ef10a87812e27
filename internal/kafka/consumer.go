package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously after each handled message
	})
	return newConsumer(r, workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond, maxBackoff: 10 * time.Second}
}

// Start fetches until ctx is cancelled. Each partition is pinned to one
// worker, so its messages are handled and committed in offset order. A
// failing message is retried with backoff and blocks its partition; an
// offset is never committed past an unhandled one.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, h, m) {
					return
				}
			}
		}(queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries h until it succeeds, then commits. It reports false when
// ctx ended first; the message stays uncommitted for redelivery.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		slog.Error("consumer handler failed",
			"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, c.maxBackoff)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		slog.Error("commit offset", "topic", m.Topic, "offset", m.Offset, "err", err)
	}
	return true
}
