package observability

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFactory is a MetricFactory backed by client_golang. Dotted
// names become underscored Prometheus names.
type PrometheusFactory struct {
	reg     prometheus.Registerer
	buckets []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

var _ MetricFactory = (*PrometheusFactory)(nil)

// NewPrometheusFactory registers metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		reg:        reg,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// WithBuckets sets histogram buckets for metrics created afterwards.
func (f *PrometheusFactory) WithBuckets(buckets []float64) *PrometheusFactory {
	f.buckets = buckets
	return f
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: promName(name),
		Help: "Count of " + name + " events.",
	})
	if err := f.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				c = existing
			}
		}
	}
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Help:    "Distribution of " + name + ".",
		Buckets: f.buckets,
	})
	if err := f.reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				h = existing
			}
		}
	}
	f.histograms[name] = h
	return h
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
