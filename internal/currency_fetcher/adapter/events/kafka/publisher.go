package kafka

import (
	"context"
	"encoding/json"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"time"
)

const eventType = "rates.synchronized"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends every finished run to a Kafka topic, keyed by run id.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *Publisher) Notify(ctx context.Context, result entities.SyncResult) error {
	const op = "events.kafka.Notify"

	msg, err := newMessage(result)
	if err != nil {
		return errors.Wrap(err, op)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

func newMessage(result entities.SyncResult) (kafka.Message, error) {
	value, err := json.Marshal(result)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(result.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "outcome", Value: []byte(result.Outcome)},
		},
		Time: result.FinishedAt,
	}, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
