package worker

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaProducer publishes audit payloads with franz-go.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer connects to the given seed brokers. Records are keyed by
// subject so one subject's events stay ordered within a partition.
func NewKafkaProducer(brokers []string, topic string, opts ...kgo.Opt) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaProducer{client: client, topic: topic}, nil
}

func (p *KafkaProducer) Publish(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
