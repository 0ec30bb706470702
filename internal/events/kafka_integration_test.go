package events

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/testinfra"
)

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

func TestKafkaPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	kc, err := testinfra.StartKafka(ctx)
	if err != nil {
		t.Skipf("Docker unavailable: %v", err)
	}
	t.Cleanup(func() { kc.Terminate(context.Background()) }) //nolint:errcheck

	const topic = "csvingest.events.test"
	createTopic(t, kc.Brokers[0], topic)

	p := New(kc.Brokers, topic)
	defer p.Close()

	at := time.Date(2024, 4, 26, 10, 15, 0, 0, time.UTC)
	sent := SnapshotEvent("people", "s3://bucket/people.parquet", 42, at)
	require.NoError(t, p.Publish(ctx, sent))

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   kc.Brokers,
		Topic:     topic,
		Partition: 0,
		MaxBytes:  1 << 20,
	})
	defer r.Close()
	require.NoError(t, r.SetOffset(kafkago.FirstOffset))

	msg, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "people", string(msg.Key))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, TypeSnapshotWritten, got.Type)
	assert.Equal(t, int64(42), got.Rows)
	assert.True(t, at.Equal(got.OccurredAt))
}
