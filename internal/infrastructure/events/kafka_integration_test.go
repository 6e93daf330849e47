//go:build integration

package events

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

const testTopic = "booking.sync.changes"

func setupKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopic(t, brokers, testTopic)
	return brokers
}

func createTopic(t *testing.T, brokers []string, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	time.Sleep(time.Second)
}

func TestKafkaPublisher_Integration(t *testing.T) {
	brokers := setupKafka(t)

	publisher, err := NewKafkaPublisher(brokers, testTopic, "booking-sync-test", nil)
	require.NoError(t, err)
	defer publisher.Close()

	event := appsync.ChangeEvent{
		BookingID:        "booking-int-1",
		BookingReference: "BK-INT-1",
		Provider:         "duffel",
		ProviderStatus:   "ticketed",
		Changes: []appsync.Change{
			{Field: appsync.FieldETickets, OldValue: "none", NewValue: "issued", Significance: appsync.SignificanceInfo},
		},
		SyncedAt: time.Now().UTC(),
	}
	require.NoError(t, publisher.PublishChanges(context.Background(), event))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "booking-sync-it",
		Topic:       testTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "booking-int-1", string(msg.Key))

	ce, err := ParseCloudEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, EventTypeBookingSyncChanged, ce.Type)
	assert.Equal(t, "booking-sync-test", ce.Source)

	var data appsync.ChangeEvent
	require.NoError(t, ce.ParseData(&data))
	assert.Equal(t, "BK-INT-1", data.BookingReference)
}
