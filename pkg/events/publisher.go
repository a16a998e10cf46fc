package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/socchain/faucet/pkg/kafka"
	"github.com/socchain/faucet/pkg/metrics"
)

// Publisher delivers envelopes. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e *Envelope) error
}

// Producer is the subset of *kafka.Producer used by KafkaPublisher.
type Producer interface {
	Produce(ctx context.Context, msg kafka.Msg) error
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*KafkaPublisher)(nil)
	_ Producer  = (*kafka.Producer)(nil)
)

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Envelope) error { return nil }

// KafkaPublisher writes envelopes as JSON records to a single topic.
type KafkaPublisher struct {
	producer Producer
	topic    string
	metrics  *metrics.Metrics
}

func NewKafkaPublisher(producer Producer, topic string, m *metrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, metrics: m}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e *Envelope) error {
	if e == nil {
		return ErrInvalidEnvelope
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	err = p.producer.Produce(ctx, kafka.Msg{
		Topic: p.topic,
		Key:   []byte(e.Key),
		Value: value,
		Headers: map[string]string{
			"type":    string(e.Type),
			"version": strconv.Itoa(e.Version),
			"id":      e.ID.String(),
		},
	})
	p.metrics.RecordEventPublished(string(e.Type), err)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}
