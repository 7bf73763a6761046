package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/getflowline/flowline/common/logger"
)

// KafkaBus is the production Bus implementation. One shared writer covers
// all topics; consumers get a dedicated group reader per topic.
type KafkaBus struct {
	brokers []string
	log     *logger.Logger

	mu     sync.Mutex
	writer *kafka.Writer
}

// NewKafkaBus configures a bus against the given brokers
func NewKafkaBus(brokers []string, log *logger.Logger) *KafkaBus {
	return &KafkaBus{
		brokers: brokers,
		log:     log,
	}
}

// Start builds the shared writer. Safe to call repeatedly and from
// multiple goroutines.
func (b *KafkaBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer != nil {
		return nil
	}

	b.writer = &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		BatchBytes:   32768,
	}

	b.log.Info("kafka producer started", "brokers", b.brokers)
	return nil
}

// Send JSON-encodes value and publishes it. Blocks while the broker is
// saturated, which is the intended flow-control signal for callers.
func (b *KafkaBus) Send(ctx context.Context, topic, key string, value any) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	b.mu.Lock()
	writer := b.writer
	b.mu.Unlock()

	if writer == nil {
		return fmt.Errorf("kafka producer is closed")
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		b.log.Error("kafka publish failed", "topic", topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	b.log.Debug("kafka publish", "topic", topic, "key", key, "bytes", len(payload))
	return nil
}

// Consumer opens a group reader on the topic
func (b *KafkaBus) Consumer(topic, group string) Consumer {
	return NewKafkaConsumer(b.brokers, group, topic, b.log)
}

// Close flushes and releases the writer
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.writer == nil {
		return nil
	}

	err := b.writer.Close()
	b.writer = nil
	if err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}

	b.log.Info("kafka producer closed")
	return nil
}

// KafkaConsumer reads one topic within a consumer group. Offsets are
// committed only after the handler returns nil, so a crash before commit
// replays the message (at-least-once).
type KafkaConsumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewKafkaConsumer builds a group reader starting at the earliest
// uncommitted offset
func NewKafkaConsumer(brokers []string, group, topic string, log *logger.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	return &KafkaConsumer{
		reader: reader,
		log:    log.WithFields(map[string]any{"topic": topic, "group": group}),
	}
}

// Run fetches messages until ctx is cancelled or the reader is closed.
// Handler errors are logged and the loop moves on without committing;
// fetch errors back off for a second before retrying.
func (c *KafkaConsumer) Run(ctx context.Context, handler MessageHandler) error {
	c.log.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				c.log.Info("consumer stopped")
				return nil
			}
			c.log.Error("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				c.log.Info("consumer stopped")
				return nil
			case <-time.After(1 * time.Second):
			}
			continue
		}

		record := Message{
			Topic: msg.Topic,
			Key:   string(msg.Key),
			Value: msg.Value,
		}

		if err := handler(ctx, record); err != nil {
			c.log.Error("message handler error", "key", record.Key, "offset", msg.Offset, "error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return nil
			}
			c.log.Error("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

// Close releases the reader and its group membership
func (c *KafkaConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
