// Package publish emits tracked-action messages to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/PratikDhanave/next-action-service/internal/config"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

// Writer is the subset of kafka.Writer the publisher uses; tests inject a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends ActionTracked messages.
type Publisher interface {
	PublishActionTracked(ctx context.Context, msg models.ActionTrackedMessage) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a no-op otherwise.
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// KafkaPublisher writes JSON messages keyed by user ID.
type KafkaPublisher struct {
	writer Writer
}

// writeTimeout bounds one produce call made inside a track request.
const writeTimeout = 2 * time.Second

// NewKafkaPublisher creates a publisher writing to topic on brokers.
// Hashing on the key keeps one user's messages on one partition, in order.
// A failed write is attempted once and never retried.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: newKafkaWriter(brokers, topic)}
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        strings.TrimSpace(topic),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  1,
		WriteTimeout: writeTimeout,
	}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishActionTracked(ctx context.Context, msg models.ActionTrackedMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal action tracked message")
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.UserID), Value: b}); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards messages.
type Noop struct{}

func (Noop) PublishActionTracked(context.Context, models.ActionTrackedMessage) error { return nil }

func (Noop) Close() error { return nil }
