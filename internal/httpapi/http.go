// Package httpapi is the client-facing REST surface of the market server.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/internal/httpapi/handler"
	"gopherbazaar.com/internal/httpapi/router"
	"gopherbazaar.com/pkg/middleware"
	"gopherbazaar.com/pkg/ratelimit"
)

type RateLimitConfig struct {
	RPS   float64       `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type Config struct {
	Addr         string          `mapstructure:"addr"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	CORSOrigins  []string        `mapstructure:"cors_origins"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type Deps struct {
	ServiceName string
	Market      handler.MarketService
	Bank        bank.Service
	// WS serves /ws when set.
	WS http.HandlerFunc
}

// ginprom registers its collectors globally, so one instance serves every
// engine built in the process.
var (
	promOnce sync.Once
	prom     *ginprom.Prometheus
)

func prometheusFor(service string) *ginprom.Prometheus {
	promOnce.Do(func() { prom = ginprom.NewPrometheus(service) })
	return prom
}

// NewEngine builds the gin engine. The rate limit janitor stops with ctx.
func NewEngine(ctx context.Context, cfg Config, deps Deps) *gin.Engine {
	if cfg.RateLimit.RPS <= 0 {
		cfg.RateLimit.RPS = 50
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 100
	}
	if cfg.RateLimit.TTL <= 0 {
		cfg.RateLimit.TTL = 10 * time.Minute
	}
	store := ratelimit.NewStore(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	prometheusFor("gopherbazaar").Use(r)
	r.Use(
		otelgin.Middleware(deps.ServiceName),
		middleware.ReqId(),
		corsFor(cfg.CORSOrigins),
		middleware.Recover(),
		middleware.RateLimit(store),
	)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if deps.WS != nil {
		r.GET("/ws", gin.WrapF(deps.WS))
	}

	api := r.Group("/api")
	router.Market(api, &handler.Market{Svc: deps.Market})
	router.Bank(api, &handler.Bank{Svc: deps.Bank})
	return r
}

func corsFor(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	c := cors.DefaultConfig()
	c.AllowOrigins = origins
	return cors.New(c)
}

func NewServer(ctx context.Context, cfg Config, deps Deps) *http.Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &http.Server{
		Addr:           cfg.Addr,
		Handler:        NewEngine(ctx, cfg, deps),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
