package broker

import (
	"context"
)

// Message is a raw record from the broker. Value is passed to handlers
// undecoded; each event family owns its own payload shape.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error
