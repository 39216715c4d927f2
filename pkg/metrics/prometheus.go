package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// PrometheusCollector - Prometheus implementation of Collector
// =============================================================================

// PrometheusCollector implements the Collector interface using Prometheus.
type PrometheusCollector struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector with the
// standard waflens metrics pre-registered.
func NewPrometheusCollector() (*PrometheusCollector, error) {
	return NewPrometheusCollectorWithDefinitions(DefaultDefinitions())
}

// NewPrometheusCollectorWithDefinitions creates a collector with custom
// metric definitions.
func NewPrometheusCollectorWithDefinitions(definitions []MetricDefinition) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, def := range definitions {
		if err := c.register(def); err != nil {
			return nil, fmt.Errorf("registering metric %s: %w", def.Name, err)
		}
	}

	return c, nil
}

func (c *PrometheusCollector) register(def MetricDefinition) error {
	switch def.Type {
	case MetricTypeCounter:
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: def.Name,
			Help: def.Help,
		}, def.Labels)
		if err := c.registry.Register(vec); err != nil {
			return err
		}
		c.counters[def.Name] = vec

	case MetricTypeGauge:
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: def.Name,
			Help: def.Help,
		}, def.Labels)
		if err := c.registry.Register(vec); err != nil {
			return err
		}
		c.gauges[def.Name] = vec

	case MetricTypeHistogram:
		buckets := def.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    def.Name,
			Help:    def.Help,
			Buckets: buckets,
		}, def.Labels)
		if err := c.registry.Register(vec); err != nil {
			return err
		}
		c.histograms[def.Name] = vec

	default:
		return fmt.Errorf("unknown metric type: %s", def.Type)
	}

	return nil
}

// labelsToMap converts alternating key-value label pairs into a label map.
func labelsToMap(labels []string) prometheus.Labels {
	m := make(prometheus.Labels, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		m[labels[i]] = labels[i+1]
	}
	return m
}

func (c *PrometheusCollector) CounterInc(name string, labels ...string) {
	c.mu.RLock()
	vec, ok := c.counters[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Inc()
	}
}

func (c *PrometheusCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.RLock()
	vec, ok := c.counters[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Add(value)
	}
}

func (c *PrometheusCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.RLock()
	vec, ok := c.gauges[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Set(value)
	}
}

func (c *PrometheusCollector) GaugeInc(name string, labels ...string) {
	c.mu.RLock()
	vec, ok := c.gauges[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Inc()
	}
}

func (c *PrometheusCollector) GaugeDec(name string, labels ...string) {
	c.mu.RLock()
	vec, ok := c.gauges[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Dec()
	}
}

func (c *PrometheusCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.RLock()
	vec, ok := c.histograms[name]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if m, err := vec.GetMetricWith(labelsToMap(labels)); err == nil {
		m.Observe(value)
	}
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset re-creates the registry and re-registers all known metrics.
func (c *PrometheusCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, vec := range c.counters {
		vec.Reset()
	}
	for _, vec := range c.gauges {
		vec.Reset()
	}
	for _, vec := range c.histograms {
		vec.Reset()
	}
}

var _ Collector = (*PrometheusCollector)(nil)
