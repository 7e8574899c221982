package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"gopherbazaar.com/internal/feed"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/safe"
)

// Hub tracks which connections watch which feed topics and keeps the last
// frame per topic so a new subscriber starts with a snapshot.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Conn]struct{}
	last map[string][]byte
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Conn]struct{}),
		last: make(map[string][]byte),
	}
}

func (h *Hub) Subscribe(c *Conn, topics []string) {
	h.mu.Lock()
	snaps := make([][]byte, 0, len(topics))
	for _, t := range topics {
		set := h.subs[t]
		if set == nil {
			set = make(map[*Conn]struct{}, 16)
			h.subs[t] = set
		}
		set[c] = struct{}{}
		// taken under the same lock so a concurrent Publish is not missed
		if b := h.last[t]; b != nil {
			snaps = append(snaps, b)
		}
	}
	h.mu.Unlock()

	for _, b := range snaps {
		_ = c.offer(b)
	}
}

func (h *Hub) Unsubscribe(c *Conn, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		if set := h.subs[t]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subs, t)
			}
		}
	}
}

func (h *Hub) RemoveConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for t, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, t)
		}
	}
}

// Publish fans frame out to topic subscribers. Offers never block, so a slow
// client cannot stall the others.
func (h *Hub) Publish(topic string, frame []byte) {
	h.mu.Lock()
	h.last[topic] = frame
	conns := make([]*Conn, 0, len(h.subs[topic]))
	for c := range h.subs[topic] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.offer(frame)
	}
}

// Bridge subscribes to the feed topics and forwards them into the hub
// until ctx is done. The subscription is in place when Bridge returns.
func Bridge(ctx context.Context, h *Hub, b feed.Broker) error {
	ch, err := b.Subscribe(ctx, []string{feed.TopicItems, feed.TopicTrades})
	if err != nil {
		return err
	}
	safe.GoCtx(ctx, func(ctx context.Context) {
		for msg := range ch {
			frame, err := encode(ServerMsg{Type: TypeFeed, Topic: msg.Topic, Data: msg.Payload})
			if err != nil {
				logger.Warn(ctx, "ws: encode feed frame", zap.String("topic", msg.Topic), zap.Error(err))
				continue
			}
			h.Publish(msg.Topic, frame)
		}
	})
	return nil
}
