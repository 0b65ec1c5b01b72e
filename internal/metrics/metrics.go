package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 服务内共享的 Prometheus 指标
type Metrics struct {
	Transitions      *prometheus.CounterVec
	TrustIncrements  prometheus.Counter
	Notifications    *prometheus.CounterVec
	ConfigCache      *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPLatency      *prometheus.HistogramVec
	LockWaitDuration prometheus.Histogram
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// New 创建一组未注册的指标，测试中每次都拿到独立实例
func New(namespace string) *Metrics {
	return &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layaway_transitions_total",
			Help:      "Layaway lifecycle actions by action and outcome.",
		}, []string{"action", "outcome"}),
		TrustIncrements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_increments_total",
			Help:      "Trust ledger increments committed on delivery.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_notifications_total",
			Help:      "Delivery notifications by outcome.",
		}, []string{"outcome"}),
		ConfigCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "financing_config_cache_total",
			Help:      "Financing configuration cache lookups by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		LockWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trust_lock_wait_seconds",
			Help:      "Time spent acquiring the per-customer trust lock.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry 构建并注册全局指标单例
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = New(namespace)
		prometheus.MustRegister(
			metricsInstance.Transitions,
			metricsInstance.TrustIncrements,
			metricsInstance.Notifications,
			metricsInstance.ConfigCache,
			metricsInstance.HTTPRequests,
			metricsInstance.HTTPLatency,
			metricsInstance.LockWaitDuration,
		)
	})
	return metricsInstance
}
