package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// subjectHeader carries the logical subject since every event shares one topic
const subjectHeader = "subject"

// KafkaPublisher writes messages to a single Kafka topic, keyed by account
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one message. Messages with the same key land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, subject, key string, data []byte) error {
	err := p.writer.WriteMessages(ctx, buildKafkaMessage(subject, key, data))
	if err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", p.writer.Topic, err)
	}

	log.WithFields(log.Fields{
		"topic":   p.writer.Topic,
		"subject": subject,
		"key":     key,
	}).Debug("Published message to Kafka")
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildKafkaMessage(subject, key string, data []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: subjectHeader, Value: []byte(subject)},
		},
	}
}
