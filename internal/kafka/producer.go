package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox and writes them from one goroutine.
type Producer struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				slog.Error("kafka write failed", "topic", topic, "messages", len(msgs), "err", err)
			}
		},
	}
	return newProducer(w, buf)
}

func newProducer(w messageWriter, buf int) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		defer func() {
			if err := p.w.Close(); err != nil {
				slog.Error("kafka writer close", "err", err)
			}
		}()
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-p.closeCh:
				p.drain()
				return
			case <-ctx.Done():
				p.drain()
				return
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		slog.Error("kafka publish", "key", string(m.Key), "err", err)
	}
}

// Publish queues a message. It blocks while the inbox is full.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.closeCh:
		return ErrProducerClosed
	default:
	}
	msg := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- msg:
		return nil
	case <-p.closeCh:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; queued ones are flushed before the
// writer closes.
func (p *Producer) Close() { p.once.Do(func() { close(p.closeCh) }) }

func (p *Producer) WaitClosed() { <-p.done }
