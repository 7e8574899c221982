package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"gopherbazaar.com/internal/market"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/xerr"
)

var (
	ErrQueueFull  = xerr.New(xerr.Unavailable, "client send queue full")
	ErrConnClosed = xerr.New(xerr.Unavailable, "client connection closed")
)

// Conn is one websocket client. As a market.Callback every push is queued
// without blocking; the engine sees a full queue as an unreachable client.
type Conn struct {
	id   string
	ws   *websocket.Conn
	hub  *Hub
	send chan []byte

	once   sync.Once
	done   chan struct{}
	closed atomic.Bool
}

var _ market.Callback = (*Conn)(nil)

func newConn(id string, ws *websocket.Conn, hub *Hub, buffer int) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		hub:  hub,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) UpdateItemList(_ context.Context, lines []string) error {
	return c.push(ServerMsg{Type: TypeItems, Lines: nonNil(lines)})
}

func (c *Conn) UpdateWishList(_ context.Context, lines []string) error {
	return c.push(ServerMsg{Type: TypeWishes, Lines: nonNil(lines)})
}

func (c *Conn) NotifyPurchase(_ context.Context, name string, price decimal.Decimal) error {
	return c.push(ServerMsg{Type: TypePurchase, Name: name, Price: price.String()})
}

func (c *Conn) NotifySale(_ context.Context, name string, price decimal.Decimal) error {
	return c.push(ServerMsg{Type: TypeSale, Name: name, Price: price.String()})
}

func (c *Conn) push(m ServerMsg) error {
	b, err := encode(m)
	if err != nil {
		return err
	}
	return c.offer(b)
}

func (c *Conn) offer(frame []byte) error {
	if c.closed.Load() {
		metrics.WsDroppedTotal.WithLabelValues("closed").Inc()
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		metrics.WsDroppedTotal.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
