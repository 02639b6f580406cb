// Package kafka publishes audit batches to a Kafka topic, making the broker
// the durable source of truth for the trail. Downstream compliance and SIEM
// consumers read from the topic independently.
package kafka

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"

	"mediglot/internal/audit"
)

const DefaultTopic = "mediglot.audit.events"

type Sink struct {
	client *kgo.Client
	topic  string
}

// Option configures the Sink.
type Option func(*Sink)

// WithTopic overrides the audit topic.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		if topic != "" {
			s.topic = topic
		}
	}
}

func New(client *kgo.Client, opts ...Option) *Sink {
	s := &Sink{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient dials the brokers with settings suited to audit publishing:
// all-replica acks, and a single producing goroutine upstream means default
// ordering guarantees hold per partition.
func NewClient(brokers []string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
}

// Deliver produces one JSON record per event, keyed by action so related
// events land on the same partition, and waits for broker acknowledgement
// of the whole batch.
func (s *Sink) Deliver(ctx context.Context, batch []audit.Event) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit event %s: %w", e.Action, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(e.Action),
			Value: payload,
		})
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch to %s: %w", s.topic, err)
	}
	return nil
}
