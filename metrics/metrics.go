package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"novytek/api/models"
)

// Collector holds the Prometheus metrics of the service on its own registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	VisitsRecorded      prometheus.Counter
	ConversionsRecorded *prometheus.CounterVec
	TrackingFailures    *prometheus.CounterVec
	OpenPageViews       prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		VisitsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Page visits written to the store",
		}),
		ConversionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_recorded_total",
			Help:      "Conversions written to the store, by type",
		}, []string{"type"}),
		TrackingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_failures_total",
			Help:      "Tracking writes that failed, by operation",
		}, []string{"op"}),
		OpenPageViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_page_views",
			Help:      "Page views currently sampled",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.VisitsRecorded,
		c.ConversionsRecorded,
		c.TrackingFailures,
		c.OpenPageViews,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) VisitRecorded() {
	c.VisitsRecorded.Inc()
}

func (c *Collector) ConversionRecorded(t models.ConversionType) {
	c.ConversionsRecorded.WithLabelValues(string(t)).Inc()
}

func (c *Collector) TrackingFailure(op string) {
	c.TrackingFailures.WithLabelValues(op).Inc()
}

func (c *Collector) ActivePageViews(n int) {
	c.OpenPageViews.Set(float64(n))
}
