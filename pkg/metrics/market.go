package metrics

import "github.com/prometheus/client_golang/prometheus"

// Settlement outcomes.
const (
	ResultCommitted    = "committed"
	ResultRejected     = "rejected"
	ResultCompensated  = "compensated"
	ResultInconsistent = "inconsistent"
	ResultUnknown      = "unknown"
)

var (
	SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Settlement attempts by outcome.",
	}, []string{"result"})

	NotifyFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_failures_total",
		Help:      "Client callbacks that could not be delivered.",
	}, []string{"kind"}) // items/wishes/purchase/sale

	MailboxFullTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_mailbox_full_total",
		Help:      "Gateway commands refused because the mailbox was full.",
	})

	CatalogListings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_listings",
		Help:      "Live listings.",
	})
	CatalogWishes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_wishes",
		Help:      "Standing wishes.",
	})

	MatcherPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "matcher_pass_seconds",
		Help:      "Duration of one matching pass.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)
