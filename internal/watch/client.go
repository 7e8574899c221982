// Package watch is a reconnecting websocket client for the market's /ws
// endpoint.
package watch

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"gopherbazaar.com/internal/ws"
	"gopherbazaar.com/pkg/logger"
)

type Client struct {
	// URL of the /ws endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// ID registers the connection as a participant; empty watches only.
	ID string
	// Topics are feed topics to subscribe to after connecting.
	Topics []string
	// OnMessage runs on the read loop; keep it short.
	OnMessage func(ws.ServerMsg)

	StableReset time.Duration // connected this long resets the backoff
	PingEvery   time.Duration
	MaxBackoff  time.Duration
}

// Run connects and reconnects until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	target, err := c.target()
	if err != nil {
		return err
	}
	if c.StableReset <= 0 {
		c.StableReset = 10 * time.Second
	}
	if c.PingEvery <= 0 {
		c.PingEvery = 20 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}

	backoff := 200 * time.Millisecond
	for ctx.Err() == nil {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		conn, _, err := websocket.Dial(dctx, target, nil)
		cancel()
		if err != nil {
			sleep := jitter(backoff)
			logger.Warn(ctx, "watch: dial failed", zap.String("url", target), zap.Duration("retry_in", sleep), zap.Error(err))
			if !sleepCtx(ctx, sleep) {
				return ctx.Err()
			}
			backoff = min(backoff*2, c.MaxBackoff)
			continue
		}

		logger.Info(ctx, "watch: connected", zap.String("url", target))
		start := time.Now()
		err = c.serve(ctx, conn)
		_ = conn.CloseNow()

		// a connection that dies at once must not reset into a reconnect storm
		if time.Since(start) >= c.StableReset {
			backoff = 200 * time.Millisecond
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "watch: connection ended", zap.Error(err), zap.Int("close_status", int(websocket.CloseStatus(err))))
			if !sleepCtx(ctx, jitter(backoff)) {
				return ctx.Err()
			}
			backoff = min(backoff*2, c.MaxBackoff)
		}
	}
	return ctx.Err()
}

func (c *Client) target() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	if c.ID != "" {
		q := u.Query()
		q.Set("id", c.ID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	if len(c.Topics) > 0 {
		sub, err := json.Marshal(ws.ClientMsg{Type: "sub", Topics: c.Topics})
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = conn.Write(wctx, websocket.MessageText, sub)
		cancel()
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.Read(ctx)
			if err != nil {
				errCh <- err
				return
			}
			msg, err := ws.Decode(raw)
			if err != nil {
				logger.Debug(ctx, "watch: undecodable frame", zap.ByteString("raw", raw))
				continue
			}
			if c.OnMessage != nil {
				c.OnMessage(msg)
			}
		}
	}()

	ping := time.NewTicker(c.PingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// jitter spreads d over 0.5x to 1.5x.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
