// Package kafka relays notifications to a Kafka topic. Records are keyed by
// aggregate so per-certificate ordering survives partitioning.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"certtrace/internal/outbox"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink publishes outbox events to one topic.
type Sink struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

func (s *Sink) Name() string {
	return "kafka:" + s.topic
}

// Publish produces the whole batch synchronously and fails if any record fails.
func (s *Sink) Publish(ctx context.Context, events []outbox.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		record, err := ToRecord(s.topic, e)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce notifications: %w", err)
	}
	return nil
}

// ToRecord encodes an event as a Kafka record.
func ToRecord(topic string, e outbox.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal notification %d: %w", e.Sequence, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(e.Aggregate),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(e.Kind)},
			{Key: "sequence", Value: []byte(strconv.FormatUint(e.Sequence, 10))},
			{Key: "event_id", Value: []byte(e.ID.String())},
		},
		Timestamp: e.OccurredAt,
	}, nil
}

// EnsureTopic creates the notification topic if it does not already exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
