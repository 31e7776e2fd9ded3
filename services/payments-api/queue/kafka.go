// services/payments-api/queue/kafka.go
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/payment-integration-service/internal/webhook"
)

const settlementType = "payment.settled"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Bus publishes settlement events keyed by transaction reference, so every
// event for one reference lands on the same partition.
type Bus struct {
	w     messageWriter
	topic string
}

func New(brokers []string, topic string) *Bus {
	return &Bus{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		topic: topic,
	}
}

func (b *Bus) PublishSettlement(ctx context.Context, s webhook.Settlement) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.Reference),
		Value: payload,
		Time:  s.SettledAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(settlementType)},
			{Key: "provider", Value: []byte(s.Provider)},
		},
	})
}

func (b *Bus) Topic() string { return b.topic }

func (b *Bus) Close() error { return b.w.Close() }

var _ webhook.Publisher = (*Bus)(nil)
