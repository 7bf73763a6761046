package queue

import "context"

// Message is one bus record
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MessageHandler processes one message. Returning nil acknowledges it;
// an error leaves the message uncommitted for at-least-once redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Producer publishes events. Values are serialized as JSON; the key
// routes all messages of one run to the same partition so per-run
// ordering holds.
type Producer interface {
	// Start is idempotent and safe for concurrent use
	Start(ctx context.Context) error

	// Send publishes value to topic, lazily starting the producer
	Send(ctx context.Context, topic, key string, value any) error

	// Close flushes in-flight batches
	Close() error
}

// Consumer delivers messages from a single topic to a handler
type Consumer interface {
	// Run blocks until ctx is cancelled or the consumer is closed
	Run(ctx context.Context, handler MessageHandler) error

	Close() error
}

// Bus is a producer that can also open consumers on its topics
type Bus interface {
	Producer

	Consumer(topic, group string) Consumer
}
