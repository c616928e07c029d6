// Package promtel binds telemetry.Metrics to github.com/prometheus/client_golang,
// for operators who want a /metrics scrape endpoint without standing up an
// OTEL collector. Tag pairs become Prometheus label values; the label
// *names* for a given metric must stay consistent across calls, matching
// Prometheus's own constraint that a metric's label set is fixed at
// registration time.
package promtel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"goa.design/swarmassistant/telemetry"
)

// Metrics records counters, timers, and gauges as Prometheus vectors,
// registering each metric name lazily on first use against the supplied
// registerer.
type Metrics struct {
	registerer prometheus.Registerer

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// New constructs a Metrics bound to reg. Pass prometheus.DefaultRegisterer
// to expose metrics on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

var _ telemetry.Metrics = (*Metrics)(nil)

func (m *Metrics) IncCounter(name string, value float64, tags ...string) {
	names, values := splitTags(tags)
	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: sanitize(name),
			Help: "swarmassistant counter " + name,
		}, names)
		if err := m.registerer.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				c = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		m.counters[name] = c
	}
	c.WithLabelValues(values...).Add(value)
}

func (m *Metrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	names, values := splitTags(tags)
	h, ok := m.histograms[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    sanitize(name),
			Help:    "swarmassistant timer " + name,
			Buckets: prometheus.DefBuckets,
		}, names)
		if err := m.registerer.Register(h); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				h = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
		m.histograms[name] = h
	}
	h.WithLabelValues(values...).Observe(duration.Seconds())
}

func (m *Metrics) RecordGauge(name string, value float64, tags ...string) {
	names, values := splitTags(tags)
	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: sanitize(name),
			Help: "swarmassistant gauge " + name,
		}, names)
		if err := m.registerer.Register(g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				g = are.ExistingCollector.(*prometheus.GaugeVec)
			}
		}
		m.gauges[name] = g
	}
	g.WithLabelValues(values...).Set(value)
}

func splitTags(tags []string) (names, values []string) {
	for i := 0; i+1 < len(tags); i += 2 {
		names = append(names, tags[i])
		values = append(values, tags[i+1])
	}
	return names, values
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
