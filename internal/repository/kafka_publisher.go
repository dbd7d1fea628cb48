package repository

import (
	"context"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
)

// messageProducer is satisfied by *pkg/kafka.Producer.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaAlertPublisher implements AlertPublisher for Kafka. Alerts are keyed
// by symbol so one symbol's alerts stay ordered on a partition.
type KafkaAlertPublisher struct {
	producer messageProducer
	topic    string
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)

// NewKafkaAlertPublisher creates Kafka publisher.
func NewKafkaAlertPublisher(producer messageProducer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, a models.Alert) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), a)
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopAlertPublisher drops alerts; used when Kafka is disabled.
type NopAlertPublisher struct{}

func (NopAlertPublisher) PublishAlert(context.Context, models.Alert) error { return nil }
func (NopAlertPublisher) Close() error                                     { return nil }
