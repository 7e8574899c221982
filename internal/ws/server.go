package ws

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"gopherbazaar.com/internal/market"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/xerr"
)

// Registrar is the part of the market gateway a connection needs.
type Registrar interface {
	RegisterClient(ctx context.Context, cb market.Callback) error
	UnregisterClient(ctx context.Context, cb market.Callback) error
}

type Config struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PingJitter     time.Duration `mapstructure:"ping_jitter"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		SendBuffer: 256,
		PongWait:   60 * time.Second,
		PingPeriod: 30 * time.Second,
		PingJitter: 100 * time.Millisecond,
		WriteWait:  5 * time.Second,
		ReadLimit:  1 << 10,
	}
}

type Server struct {
	ctx      context.Context
	market   Registrar
	hub      *Hub
	cfg      Config
	upgrader websocket.Upgrader
}

// NewServer serves participants (?id=<account>) and anonymous feed
// watchers. Connections end when ctx is done.
func NewServer(ctx context.Context, reg Registrar, hub *Hub, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	s := &Server{ctx: ctx, market: reg, hub: hub, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeWS upgrades the request. With an id the connection is registered
// with the market as that account's callback; without one it only receives
// the feed topics it subscribes to.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "ws: upgrade failed", zap.Error(err))
		return
	}
	c := newConn(id, wsConn, s.hub, s.cfg.SendBuffer)
	metrics.WsOnOpen()

	if id != "" {
		if err := s.market.RegisterClient(r.Context(), c); err != nil {
			logger.Warn(r.Context(), "ws: register failed", zap.String("id", id), zap.Error(err))
			msg := websocket.FormatCloseMessage(closeCode(err), xerr.MapErrMsg(xerr.CodeOf(err)))
			_ = wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			_ = wsConn.Close()
			c.close()
			metrics.WsOnClose("register_failed")
			return
		}
	}
	logger.Info(r.Context(), "ws: connected", zap.String("id", id))

	go s.writePump(c)
	go s.readPump(c)
}

func closeCode(err error) int {
	if xerr.CodeOf(err) == xerr.TooManyRequests {
		return websocket.CloseTryAgainLater
	}
	return websocket.CloseInternalServerErr
}

func (s *Server) readPump(c *Conn) {
	reason := "client"
	defer func() {
		c.close()
		s.hub.RemoveConn(c)
		if c.id != "" {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.WriteWait)
			if err := s.market.UnregisterClient(ctx, c); err != nil {
				logger.Warn(ctx, "ws: unregister failed", zap.String("id", c.id), zap.Error(err))
			}
			cancel()
		}
		_ = c.ws.Close()
		metrics.WsOnClose(reason)
	}()

	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				reason = "pong_timeout"
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				reason = "client"
			default:
				reason = "read_error"
			}
			logger.Debug(s.ctx, "ws: read ended", zap.String("id", c.id), zap.String("reason", reason), zap.Error(err))
			return
		}
		var msg ClientMsg
		if json.Unmarshal(b, &msg) != nil {
			continue
		}
		switch msg.Type {
		case "sub":
			s.hub.Subscribe(c, msg.Topics)
		case "unsub":
			s.hub.Unsubscribe(c, msg.Topics)
		}
	}
}

func (s *Server) writePump(c *Conn) {
	if s.cfg.PingJitter > 0 {
		t := time.NewTimer(rand.N(s.cfg.PingJitter))
		select {
		case <-t.C:
		case <-c.done:
			t.Stop()
			return
		case <-s.ctx.Done():
			t.Stop()
			_ = c.ws.Close()
			return
		}
	}

	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			start := time.Now()
			_ = c.ws.SetWriteDeadline(start.Add(s.cfg.WriteWait))
			err := c.ws.WriteMessage(websocket.TextMessage, frame)
			metrics.WsObserveWrite(len(frame), time.Since(start), err)
			if err != nil {
				logger.Debug(s.ctx, "ws: write failed", zap.String("id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				return
			}
		case <-c.done:
			return
		case <-s.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}
