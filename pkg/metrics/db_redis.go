package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bank_db_pool_open",
		Help: "Current open DB connections",
	})
	DbPoolIdle  = promauto.NewGauge(prometheus.GaugeOpts{Name: "bank_db_pool_idle"})
	DbPoolInuse = promauto.NewGauge(prometheus.GaugeOpts{Name: "bank_db_pool_inuse"})

	RedisPoolTotal = promauto.NewGauge(prometheus.GaugeOpts{Name: "bank_redis_pool_total"})
	RedisPoolIdle  = promauto.NewGauge(prometheus.GaugeOpts{Name: "bank_redis_pool_idle"})

	LedgerOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_ledger_op_duration_seconds",
		Help:    "Ledger operation latency by backend",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms ~ 16s
	}, []string{"backend", "op", "status"})
)

// ObserveLedger records one ledger call. status is "ok" or "error".
func ObserveLedger(backend, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LedgerOpDuration.WithLabelValues(backend, op, status).Observe(time.Since(start).Seconds())
}

func ObserveDBStats(s sql.DBStats) {
	DbPoolOpen.Set(float64(s.OpenConnections))
	DbPoolIdle.Set(float64(s.Idle))
	DbPoolInuse.Set(float64(s.InUse))
}

func ObserveRedisStats(s *redis.PoolStats) {
	if s == nil {
		return
	}
	RedisPoolTotal.Set(float64(s.TotalConns))
	RedisPoolIdle.Set(float64(s.IdleConns))
}
