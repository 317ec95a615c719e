package example

import (
	"bytes"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/freekieb7/bytegate/http"
)

// StatsSource is implemented by *http.Server.
type StatsSource interface {
	Stats() http.Stats
}

// MetricsController serves server and process metrics in the Prometheus text
// format at GET /metrics.
type MetricsController struct {
	registry *prometheus.Registry
	source   atomic.Pointer[StatsSource]
}

func NewMetricsController() *MetricsController {
	c := &MetricsController{registry: prometheus.NewRegistry()}

	gauge := func(name, help string, value func(http.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return value(c.stats()) })
	}
	counter := func(name, help string, value func(http.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(value(c.stats())) })
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		gauge("bytegate_pool_workers", "Live worker goroutines.",
			func(s http.Stats) float64 { return float64(s.Pool.Workers) }),
		gauge("bytegate_pool_active", "Workers currently running a connection.",
			func(s http.Stats) float64 { return float64(s.Pool.Active) }),
		gauge("bytegate_pool_queued", "Connections waiting for a worker.",
			func(s http.Stats) float64 { return float64(s.Pool.Queued) }),
		counter("bytegate_connections_accepted_total", "Connections accepted by the listener.",
			func(s http.Stats) uint64 { return s.Accepted }),
		counter("bytegate_connections_rejected_total", "Connections answered with 503.",
			func(s http.Stats) uint64 { return s.Rejected }),
		counter("bytegate_tasks_completed_total", "Connections fully handled by a worker.",
			func(s http.Stats) uint64 { return s.Pool.Completed }),
		counter("bytegate_tasks_panicked_total", "Connections whose handler panicked.",
			func(s http.Stats) uint64 { return s.Pool.Panics }),
		counter("bytegate_tasks_dropped_total", "Queued connections dropped at shutdown.",
			func(s http.Stats) uint64 { return s.Pool.Dropped }),
	)
	return c
}

// Attach sets the server whose stats are reported. Until then every server
// metric reads zero.
func (c *MetricsController) Attach(source StatsSource) {
	c.source.Store(&source)
}

func (c *MetricsController) stats() http.Stats {
	source := c.source.Load()
	if source == nil {
		return http.Stats{}
	}
	return (*source).Stats()
}

// Registry exposes the registry for additional collectors.
func (c *MetricsController) Registry() *prometheus.Registry { return c.registry }

func (c *MetricsController) Routes() []http.Endpoint {
	return []http.Endpoint{
		{Method: "GET", Path: "/metrics", Handler: c.Metrics},
	}
}

func (c *MetricsController) Metrics(req *http.Request) *http.Response {
	families, err := c.registry.Gather()
	if err != nil {
		return http.InternalServerError()
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return http.InternalServerError()
		}
	}

	return http.NewResponse(http.StatusOK, "", buf.String(),
		http.Header{Name: "Content-Type", Value: string(expfmt.FmtText)})
}
