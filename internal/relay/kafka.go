package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"propshare/internal/journal"
)

// KafkaProducer is the part of *kgo.Client the sink uses.
//
//go:generate mockgen -source=kafka.go -destination=mocks/kafka_mocks.go -package=mocks KafkaProducer
type KafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

const (
	headerEventType = "event_type"
	headerSequence  = "sequence"
	headerEventID   = "event_id"
)

// KafkaSink publishes each record as JSON keyed by aggregate id, so events
// for one property or token stay on one partition.
type KafkaSink struct {
	producer KafkaProducer
	topic    string
}

func NewKafkaSink(producer KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

// NewKafkaClient builds an idempotent producer client for brokers.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ClientID("propshare-relay"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return cl, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func EnsureTopic(ctx context.Context, cl *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(cl)
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

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, rec journal.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", rec.Sequence, err)
	}
	kr := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(rec.AggregateID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(rec.Type)},
			{Key: headerSequence, Value: []byte(strconv.FormatUint(rec.Sequence, 10))},
			{Key: headerEventID, Value: []byte(rec.EventID.String())},
		},
	}
	if err := s.producer.ProduceSync(ctx, kr).FirstErr(); err != nil {
		return fmt.Errorf("produce record %d: %w", rec.Sequence, err)
	}
	return nil
}
