//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"certtrace/internal/outbox"
	kafkasink "certtrace/internal/outbox/sink/kafka"
	"certtrace/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaSinkSuite) TestPublishedRecordsAreKeyedByAggregate() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "certtrace-" + uuid.NewString()[:8]

	producer, err := kgo.NewClient(kgo.SeedBrokers(s.brokers...))
	s.Require().NoError(err)
	defer producer.Close()

	s.Require().NoError(kafkasink.EnsureTopic(ctx, producer, topic, 1, 1))
	// Second call must tolerate the existing topic.
	s.Require().NoError(kafkasink.EnsureTopic(ctx, producer, topic, 1, 1))

	events := []outbox.Event{
		{ID: uuid.New(), Sequence: 1, Kind: outbox.KindCertificateIssued, Aggregate: "certificate:1",
			OccurredAt: time.Now().UTC(), Payload: []byte(`{"certificate_id":1}`)},
		{ID: uuid.New(), Sequence: 2, Kind: outbox.KindCertificateRevoked, Aggregate: "certificate:1",
			OccurredAt: time.Now().UTC(), Payload: []byte(`{"certificate_id":1}`)},
	}
	s.Require().NoError(kafkasink.New(producer, topic).Publish(ctx, events))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < len(events) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for records")
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}

	s.Require().Len(got, 2)
	for i, r := range got {
		s.Equal("certificate:1", string(r.Key))
		s.Equal(string(events[i].Kind), header(r, "kind"))
	}
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
