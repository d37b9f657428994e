package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CartMutations       *prometheus.CounterVec
	Checkouts           *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	GatewayLatencyMS    *prometheus.HistogramVec
}

var (
	once    sync.Once
	metrics *Metrics
)

// New registers the collectors with reg. Pass nil to get unregistered collectors, which is what
// tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart store mutations that changed state.",
		}, []string{"op"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "order",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "persistence_failures_total",
			Help:      "Failed durable cart writes.",
		}, []string{"storage"}),
		GatewayLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "gateway",
			Name:      "request_duration_ms",
			Help:      "Remote gateway latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		}, []string{"gateway", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.CartMutations, m.Checkouts, m.PersistenceFailures, m.GatewayLatencyMS)
	}
	return m
}

// Default returns the process wide collectors registered with the default registry.
func Default() *Metrics {
	once.Do(func() {
		metrics = New(prometheus.DefaultRegisterer)
	})
	return metrics
}

func Handler() http.Handler {
	return promhttp.Handler()
}
