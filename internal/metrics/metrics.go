package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chibank_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_operations_total",
			Help: "Service operations by name and result",
		},
		[]string{"operation", "result"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chibank_operation_duration_seconds",
			Help:    "Service operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TransactionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_multisig_transitions_total",
			Help: "Multi-signature transaction status transitions",
		},
		[]string{"status"},
	)

	WalletVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_wallet_volume",
			Help: "Amount moved in or out of multi-signature wallets",
		},
		[]string{"direction", "currency"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_cache_requests_total",
			Help: "Wallet cache lookups by result",
		},
		[]string{"result"},
	)

	WalletLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chibank_wallet_logins_total",
			Help: "Wallet signature logins by chain and result",
		},
		[]string{"blockchain", "result"},
	)

	NoncesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chibank_nonces_swept_total",
			Help: "Expired login nonces cleared by the sweeper",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// Collector satisfies the MetricsCollector interfaces declared by the
// service packages.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordOperation(operation, result string, duration time.Duration) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordTransition(status string) {
	TransactionTransitionsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordVolume(direction, currency string, amount float64) {
	WalletVolume.WithLabelValues(direction, currency).Add(amount)
}

func (c *Collector) RecordCacheHit() {
	CacheRequestsTotal.WithLabelValues("hit").Inc()
}

func (c *Collector) RecordCacheMiss() {
	CacheRequestsTotal.WithLabelValues("miss").Inc()
}

func (c *Collector) RecordLogin(blockchain, result string) {
	WalletLoginsTotal.WithLabelValues(blockchain, result).Inc()
}

func (c *Collector) RecordNoncesSwept(n int64) {
	NoncesSweptTotal.Add(float64(n))
}
