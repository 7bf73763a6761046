package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getflowline/flowline/common/logger"
)

// MemoryBus is an in-process Bus for tests and single-process
// deployments, where the API binary also runs the worker loop.
type MemoryBus struct {
	topics map[string]chan Message
	mu     sync.RWMutex
	log    *logger.Logger
	closed bool
}

// NewMemoryBus creates a new in-memory bus
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	return &MemoryBus{
		topics: make(map[string]chan Message),
		log:    log,
	}
}

// Start is a no-op; channels are created on demand
func (b *MemoryBus) Start(ctx context.Context) error { return nil }

func (b *MemoryBus) channel(topic string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("memory bus is closed")
	}

	ch, exists := b.topics[topic]
	if !exists {
		ch = make(chan Message, 1000) // Buffered channel
		b.topics[topic] = ch
	}
	return ch, nil
}

// Send JSON-encodes value and queues it on the topic channel
func (b *MemoryBus) Send(ctx context.Context, topic, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	ch, err := b.channel(topic)
	if err != nil {
		return err
	}

	msg := Message{
		Topic: topic,
		Key:   key,
		Value: payload,
	}

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Channel full, log warning
		b.log.Warn("queue full", "topic", topic)
		return nil
	}
}

// Consumer returns a consumer bound to the topic. The group is ignored;
// multiple consumers on one topic compete for messages like a group would.
func (b *MemoryBus) Consumer(topic, group string) Consumer {
	return &memoryConsumer{bus: b, topic: topic}
}

// Close closes every topic channel. Consumers drain and stop.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, ch := range b.topics {
		close(ch)
		b.log.Info("closed topic", "topic", topic)
	}

	return nil
}

type memoryConsumer struct {
	bus   *MemoryBus
	topic string
}

// Run delivers queued messages to the handler until ctx is cancelled or
// the bus closes. Handler errors are logged; the message is dropped since
// there is no durable offset to replay from.
func (c *memoryConsumer) Run(ctx context.Context, handler MessageHandler) error {
	ch, err := c.bus.channel(c.topic)
	if err != nil {
		return err
	}

	c.bus.log.Info("subscribing to topic", "topic", c.topic)

	for {
		select {
		case <-ctx.Done():
			c.bus.log.Info("subscription cancelled", "topic", c.topic)
			return nil
		case msg, ok := <-ch:
			if !ok {
				c.bus.log.Info("topic closed", "topic", c.topic)
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				c.bus.log.Error("message handler error", "topic", c.topic, "key", msg.Key, "error", err)
			}
		}
	}
}

// Close is a no-op; lifecycle belongs to the bus
func (c *memoryConsumer) Close() error { return nil }
