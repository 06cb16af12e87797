//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a Kafka-compatible broker for relay tests.
type RedpandaContainer struct {
	Container *redpanda.Container
	Broker    string
}

func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.1.7")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get redpanda seed broker: %v", err)
	}
	return &RedpandaContainer{Container: container, Broker: broker}
}

// CreateTopic creates a single-partition topic.
func (r *RedpandaContainer) CreateTopic(t *testing.T, topic string) {
	t.Helper()
	client, err := kgo.NewClient(kgo.SeedBrokers(r.Broker))
	if err != nil {
		t.Fatalf("failed to create kafka client: %v", err)
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopics(context.Background(), 1, 1, nil, topic)
	if err != nil {
		t.Fatalf("failed to create topic %s: %v", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil {
			t.Fatalf("failed to create topic %s: %v", res.Topic, res.Err)
		}
	}
}

// Consume reads up to n records from the topic, starting at the beginning.
func (r *RedpandaContainer) Consume(ctx context.Context, t *testing.T, topic string, n int) []*kgo.Record {
	t.Helper()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(r.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		t.Fatalf("failed to create kafka consumer: %v", err)
	}
	defer client.Close()

	var records []*kgo.Record
	for len(records) < n {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			break
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			records = append(records, rec)
		})
	}
	return records
}
