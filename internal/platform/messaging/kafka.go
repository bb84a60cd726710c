package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campus/internal/shared/events"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Kafka publishes outbox envelopes to Kafka. The event type is the topic,
// optionally prefixed, and the partition key is the message key so events
// for one election or student stay ordered.
type Kafka struct {
	writer      *kafka.Writer
	topicPrefix string
	logger      *slog.Logger
}

func NewKafka(brokers []string, topicPrefix string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		topicPrefix: topicPrefix,
		logger:      logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event events.Envelope) error {
	message, err := buildMessage(k.topicPrefix, topic, event)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, message); err != nil {
		k.logger.Error("event publish failed",
			"event", "kafka_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", message.Topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return pkgerrors.WithStack(err)
	}
	k.logger.Info("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", message.Topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

func (k *Kafka) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func buildMessage(prefix string, topic string, event events.Envelope) (kafka.Message, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = event.EventType
	}
	if topic == "" {
		return kafka.Message{}, errors.New("event topic is required")
	}
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		topic = strings.TrimSuffix(prefix, ".") + "." + topic
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.PartitionKey
	if key == "" {
		key = event.EventID
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil
}
