package repository

import (
	"context"
	"fmt"

	"SignalWatch/internal/domain/models"
	"SignalWatch/internal/domain/repository"
	pkgkafka "SignalWatch/pkg/kafka"
)

// KafkaRelay republishes decoded envelopes to a Kafka topic so consumers
// other than this dashboard (alerting, backtesting) see the same feed.
type KafkaRelay struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRelay creates a relay publisher.
func NewKafkaRelay(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaRelay{producer: producer, topic: topic}
}

func (r *KafkaRelay) Publish(ctx context.Context, env *models.Envelope) error {
	return r.producer.Publish(ctx, r.topic, relayKey(env), env)
}

func (r *KafkaRelay) Close() error {
	if r.producer != nil {
		return r.producer.Close()
	}
	return nil
}

// relayKey keys messages so per-signal ordering survives partitioning.
func relayKey(env *models.Envelope) []byte {
	if env.Type == models.TypeSignalUpdate {
		if s, err := env.Signal(); err == nil {
			return []byte(fmt.Sprintf("signal-%d", s.ID))
		}
	}
	return []byte(string(env.Type))
}

// Name implements middleware.Sink.
func (r *KafkaRelay) Name() string { return "relay" }

// Consume implements middleware.Sink.
func (r *KafkaRelay) Consume(ctx context.Context, env *models.Envelope) error {
	return r.Publish(ctx, env)
}

// LogPublisher adapts the Kafka producer to the logger collector's
// Publisher interface so aggregated error logs ship on their own topic.
type LogPublisher struct {
	producer *pkgkafka.Producer
}

// NewLogPublisher creates a log publisher backed by the relay producer.
func NewLogPublisher(producer *pkgkafka.Producer) *LogPublisher {
	return &LogPublisher{producer: producer}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
