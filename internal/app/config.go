package app

import (
	"time"

	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/internal/bank/rpc"
	"gopherbazaar.com/internal/httpapi"
	"gopherbazaar.com/internal/market"
	"gopherbazaar.com/internal/ws"
	"gopherbazaar.com/pkg/bootstrap"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/orm"
	"gopherbazaar.com/pkg/trace"
	"gopherbazaar.com/pkg/xredis"
)

const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
	BackendGRPC   = "grpc"
)

// BankConfig selects and tunes the ledger behind the market.
type BankConfig struct {
	Backend     string           `mapstructure:"backend"`
	MySQL       orm.Config       `mapstructure:"mysql"`
	Redis       xredis.Config    `mapstructure:"redis"`
	RedisPrefix string           `mapstructure:"redis_prefix"`
	Remote      rpc.DialConfig   `mapstructure:"remote"`
	Guard       bank.GuardConfig `mapstructure:"guard"`
	// Seed creates these accounts at startup when they do not exist yet.
	Seed []SeedAccount `mapstructure:"seed"`
}

type SeedAccount struct {
	ID      string `mapstructure:"id"`
	Balance string `mapstructure:"balance"`
}

type FeedConfig struct {
	// Broker is "memory" or "nats".
	Broker  string `mapstructure:"broker"`
	NatsURL string `mapstructure:"nats_url"`
}

type JournalConfig struct {
	// Path of the settlement log; empty disables journalling.
	Path string `mapstructure:"path"`
}

type MarketServerConfig struct {
	Name      string         `mapstructure:"name"`
	Log       logger.Config  `mapstructure:"log"`
	HTTP      httpapi.Config `mapstructure:"http"`
	WS        ws.Config      `mapstructure:"ws"`
	Market    market.Config  `mapstructure:"market"`
	Journal   JournalConfig  `mapstructure:"journal"`
	Feed      FeedConfig     `mapstructure:"feed"`
	Bank      BankConfig     `mapstructure:"bank"`
	Trace     trace.Config   `mapstructure:"trace"`
	PprofAddr string         `mapstructure:"pprof_addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCRateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type BankServiceConfig struct {
	Name        string                `mapstructure:"name"`
	Log         logger.Config         `mapstructure:"log"`
	GRPC        GRPCConfig            `mapstructure:"grpc"`
	RateLimit   GRPCRateLimit         `mapstructure:"rate_limit"`
	Sentinel    bootstrap.SentinelCfg `mapstructure:"sentinel"`
	Bank        BankConfig            `mapstructure:"bank"`
	Trace       trace.Config          `mapstructure:"trace"`
	MetricsAddr string                `mapstructure:"metrics_addr"`
	PprofAddr   string                `mapstructure:"pprof_addr"`
}

// MarketDefaults are applied under the config file.
func MarketDefaults() map[string]any {
	return map[string]any{
		"name":                      "market-server",
		"log.level":                 "info",
		"http.addr":                 ":8080",
		"market.mailbox_size":       1024,
		"market.call_timeout":       3 * time.Second,
		"market.notify_timeout":     time.Second,
		"market.broadcast_parallel": 16,
		"journal.path":              "data/settlements.wal",
		"feed.broker":               "memory",
		"bank.backend":              BackendMemory,
		"bank.guard.timeout":        3 * time.Second,
		"bank.remote.target":        "127.0.0.1:9090",
		"bank.redis_prefix":         "bazaar",
		"ws.send_buffer":            256,
		"trace.ratio":               1.0,
	}
}

func BankServiceDefaults() map[string]any {
	return map[string]any{
		"name":              "bank-service",
		"log.level":         "info",
		"grpc.addr":         ":9090",
		"rate_limit.rps":    500,
		"rate_limit.burst":  1000,
		"bank.backend":      BackendMemory,
		"bank.redis_prefix": "bazaar",
		"metrics_addr":      ":9091",
		"trace.ratio":       1.0,
	}
}
