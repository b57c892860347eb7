// Package metrics exposes the prometheus side channel of the resolver and the
// access log cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// AccessLoggedLabel counts access log lines written, per domain and link key.
	AccessLoggedLabel = "link_access_total"
	// ResolutionsLabel counts resolve calls per outcome.
	ResolutionsLabel = "resolutions_total"
	// OpenHandlesLabel tracks the number of open access log handles.
	OpenHandlesLabel = "access_log_open_handles"
	// HandlesClosedLabel counts handles closed by the idle sweep.
	HandlesClosedLabel = "access_log_handles_closed_total"
)

// MustRegisterCounterVec creates a counter vector and registers it with reg.
func MustRegisterCounterVec(reg prometheus.Registerer, namespace, component, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
	reg.MustRegister(m)
	return m
}

// MustRegisterCounter creates a counter and registers it with reg.
func MustRegisterCounter(reg prometheus.Registerer, namespace, component, name, help string) prometheus.Counter {
	m := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	})
	reg.MustRegister(m)
	return m
}

// MustRegisterGauge creates a gauge and registers it with reg.
func MustRegisterGauge(reg prometheus.Registerer, namespace, component, name, help string) prometheus.Gauge {
	m := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	})
	reg.MustRegister(m)
	return m
}

// Collector records shortlinker events. It satisfies the stats interfaces of
// the accesslog and shortener packages. The zero value is not usable; build
// one with New.
type Collector struct {
	accessLogged  *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	openHandles   prometheus.Gauge
	handlesClosed prometheus.Counter
}

// New registers the shortlinker collectors on reg under namespace.
// It panics if a collector with the same name is already registered on reg.
func New(reg prometheus.Registerer, namespace string) *Collector {
	return &Collector{
		accessLogged: MustRegisterCounterVec(reg, namespace, "", AccessLoggedLabel,
			"Number of access log entries written.", "domain", "link"),
		resolutions: MustRegisterCounterVec(reg, namespace, "", ResolutionsLabel,
			"Number of resolve calls by outcome.", "outcome"),
		openHandles: MustRegisterGauge(reg, namespace, "", OpenHandlesLabel,
			"Number of access log file handles currently open."),
		handlesClosed: MustRegisterCounter(reg, namespace, "", HandlesClosedLabel,
			"Number of access log file handles closed after being idle."),
	}
}

// NewRegistry returns a registry preloaded with the go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// AccessLogged increments the per link counter by one.
func (c *Collector) AccessLogged(domainID, linkKey string) {
	c.accessLogged.WithLabelValues(domainID, linkKey).Inc()
}

func (c *Collector) HandlesOpen(n int) {
	c.openHandles.Set(float64(n))
}

func (c *Collector) HandleClosed() {
	c.handlesClosed.Inc()
}

func (c *Collector) Resolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}
