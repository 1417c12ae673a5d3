package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wayfinder"

// QueueSample is the subset of queue counters exported as metrics.
type QueueSample struct {
	Size      int
	Capacity  int
	Total     uint64
	Delivered uint64
	Dropped   uint64
}

// Metrics exposes pipeline counters to Prometheus. Values are pulled from
// the owning components at scrape time, so nothing is double counted.
type Metrics struct {
	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	return &Metrics{registry: prometheus.NewRegistry()}
}

// AddQueue registers size, capacity and throughput metrics for a queue.
func (m *Metrics) AddQueue(name string, sample func() QueueSample) {
	labels := prometheus.Labels{"queue": name}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_size",
			Help:        "Items currently held by the queue",
			ConstLabels: labels,
		},
		func() float64 { return float64(sample().Size) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_capacity",
			Help:        "Configured queue capacity",
			ConstLabels: labels,
		},
		func() float64 { return float64(sample().Capacity) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_enqueued_total",
			Help:        "Items offered to the queue",
			ConstLabels: labels,
		},
		func() float64 { return float64(sample().Total) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_delivered_total",
			Help:        "Items handed to a consumer",
			ConstLabels: labels,
		},
		func() float64 { return float64(sample().Delivered) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queue_dropped_total",
			Help:        "Items evicted or rejected on overflow",
			ConstLabels: labels,
		},
		func() float64 { return float64(sample().Dropped) },
	))
}

// AddCounter registers a monotonically increasing value.
func (m *Metrics) AddCounter(name, help string, value func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
		value,
	))
}

// AddGauge registers a value that can go up and down.
func (m *Metrics) AddGauge(name, help string, value func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
		value,
	))
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
