// Package events publishes ride lifecycle notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Well-known topic names.
const (
	TopicRideNotifications = "ride.notifications"
)

// Publisher sends a JSON-serialised value to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
	Close() error
}

// KafkaPublisher publishes through one long-lived kafka-go writer.
type KafkaPublisher struct {
	brokers []string
	writer  *kafkago.Writer
	log     zerolog.Logger
}

// NewKafkaPublisher returns a publisher for the given brokers. Messages are
// keyed so that every event of a user lands on the same partition.
func NewKafkaPublisher(brokers []string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

// EnsureTopics creates topics if they don't already exist.
func (p *KafkaPublisher) EnsureTopics(ctx context.Context, topics ...string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", p.brokers[0], err)
	}
	defer conn.Close()

	configs := make([]kafkago.TopicConfig, len(topics))
	for i, t := range topics {
		configs[i] = kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     3,
			ReplicationFactor: 1,
		}
	}

	if err := conn.CreateTopics(configs...); err != nil {
		p.log.Warn().Err(err).Msg("topic creation returned (may already exist)")
	}
	return nil
}

// Publish sends value as JSON to topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every message. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }

// Ensure interfaces are satisfied.
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
