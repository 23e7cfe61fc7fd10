// Package kafka publishes registry events to a Kafka topic. The event store
// stays the record; the topic is the fan-out surface for downstream
// consumers (indexers, compliance feeds).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"attestry/internal/platform/config"
	"attestry/pkg/platform/events"
)

// Producer implements events.Sink on top of a Kafka topic. Records are keyed
// by account so per-account ordering survives partitioning.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers. Returns nil when no
// brokers are configured (streaming disabled).
func NewProducer(cfg config.Kafka) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic}, nil
}

// recordPayload is the JSON structure written to the topic.
type recordPayload struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Timestamp      string `json:"timestamp"`
	Account        string `json:"account"`
	Issuer         string `json:"issuer,omitempty"`
	Name           string `json:"name,omitempty"`
	Field          string `json:"field,omitempty"`
	CredentialType string `json:"credential_type,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// Publish writes one event synchronously so the stream worker observes
// broker failures and can log them.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(recordPayload{
		ID:             event.ID,
		Kind:           string(event.Kind),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Account:        event.Account.String(),
		Issuer:         event.Issuer.String(),
		Name:           event.Name,
		Field:          event.Field,
		CredentialType: event.CredentialType,
		RequestID:      event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Account.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
