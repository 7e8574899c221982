package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WsConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_conns",
		Help: "Active websocket connections",
	})
	WsConnOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_conn_open_total",
		Help: "Total websocket connections opened",
	})
	WsConnCloseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_conn_close_total",
		Help: "Total websocket connections closed by reason",
	}, []string{"reason"})
	WsMsgsOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_msgs_out_total",
		Help: "Total websocket messages sent out",
	})
	WsBytesOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_bytes_out_total",
		Help: "Total websocket bytes sent out",
	})
	WsWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_write_errors_total",
		Help: "Total websocket write errors",
	})
	WsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_dropped_total",
		Help: "Total messages dropped before reaching the socket",
	}, []string{"why"}) // queue_full / closed
	WsWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ws_write_duration_seconds",
		Help:    "Duration of a websocket write",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms -> ~4s
	})
)

func WsOnOpen() {
	WsConns.Inc()
	WsConnOpenTotal.Inc()
}

func WsOnClose(reason string) {
	WsConns.Dec()
	WsConnCloseTotal.WithLabelValues(reason).Inc()
}

func WsObserveWrite(bytes int, dur time.Duration, err error) {
	WsWriteDuration.Observe(dur.Seconds())
	if err != nil {
		WsWriteErrorsTotal.Inc()
		return
	}
	WsMsgsOutTotal.Inc()
	WsBytesOutTotal.Add(float64(bytes))
}
