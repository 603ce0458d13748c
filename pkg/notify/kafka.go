package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const eventType = "notification.email.requested"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages to a topic consumed by the notification service.
type KafkaSender struct {
	writer messageWriter
	topic  string
}

// NewKafkaSender builds a hash-balanced writer so messages for one booking keep their order.
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	brokers = SplitBrokers(brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sender requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sender requires a topic")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaSender{writer: writer, topic: topic}, nil
}

// Send publishes msg keyed by its booking.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := kafka.Message{
		Key:   []byte(msg.Key()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := s.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("publish notification to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// SplitBrokers trims entries and expands comma separated values.
func SplitBrokers(raw []string) []string {
	var brokers []string
	for _, entry := range raw {
		for _, b := range strings.Split(entry, ",") {
			b = strings.TrimSpace(b)
			if b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	return brokers
}
