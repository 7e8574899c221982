package feed

import "context"

const (
	TopicItems  = "market:items"
	TopicTrades = "market:trades"
)

type Message struct {
	Topic   string
	Payload []byte
}

// Broker fans feed payloads out to observers. Delivery is at-most-once.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	Close() error
}
