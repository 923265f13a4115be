package ports

import "context"

// Message is one raw event off the bus, still in wire form. Partition and
// Offset identify the message to Commit.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Payload   []byte
}

// Consumer abstracts the event-bus intake. Poll returns up to max messages
// without blocking past the ctx deadline; an empty slice means nothing is
// pending. A polled message stays with the bus until Commit acknowledges it,
// so messages whose processing fails transiently are redelivered after a
// restart or rebalance.
type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Commit(ctx context.Context, msg Message) error
}
