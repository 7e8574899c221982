package feed

import (
	"context"
	"slices"
	"sync"
)

type MemBroker struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	buffer int
}

// NewMemBroker keeps everything in process. buffer is the per-subscriber
// queue; a full queue drops the message.
func NewMemBroker(buffer int) *MemBroker {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MemBroker{subs: make(map[string][]chan Message), buffer: buffer}
}

func (b *MemBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	ch := make(chan Message, b.buffer)
	b.mu.Lock()
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], ch)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for _, t := range topics {
			b.subs[t] = slices.DeleteFunc(b.subs[t], func(c chan Message) bool { return c == ch })
			if len(b.subs[t]) == 0 {
				delete(b.subs, t)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (b *MemBroker) Close() error { return nil }
