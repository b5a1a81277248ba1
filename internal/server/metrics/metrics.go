// Package metrics exposes filevault counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "filevault"

// Collector is a prometheus.Collector that collects metrics about
// uploads, deduplication and admission control.
type Collector struct {
	uploads          *prometheus.CounterVec
	bytesSaved       prometheus.Counter
	contentReclaimed prometheus.Counter
	orphanedBlobs    prometheus.Counter
	rateLimited      *prometheus.CounterVec
	quotaRejections  prometheus.Counter
	requestDuration  *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploads_total",
				Help:      "The number of accepted uploads by dedup outcome.",
			}, []string{"outcome"},
		),
		bytesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dedup_bytes_saved_total",
				Help:      "Bytes not written because the content already existed.",
			},
		),
		contentReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "content_reclaimed_total",
				Help:      "The number of content objects removed after their last reference.",
			},
		),
		orphanedBlobs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orphaned_blobs_total",
				Help:      "Blobs whose deletion failed after their metadata was removed.",
			},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"endpoint"},
		),
		quotaRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "quota_rejections_total",
				Help:      "Uploads rejected because they would exceed the owner's quota.",
			},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
			}, []string{"route", "code"},
		),
	}
}

// ObserveUpload records an accepted upload of size bytes.
func (c *Collector) ObserveUpload(created bool, size int64) {
	if created {
		c.uploads.WithLabelValues("created").Inc()
		return
	}
	c.uploads.WithLabelValues("deduplicated").Inc()
	c.bytesSaved.Add(float64(size))
}

func (c *Collector) ContentReclaimed() { c.contentReclaimed.Inc() }

func (c *Collector) BlobOrphaned() { c.orphanedBlobs.Inc() }

func (c *Collector) RateLimited(endpoint string) { c.rateLimited.WithLabelValues(endpoint).Inc() }

func (c *Collector) QuotaRejected() { c.quotaRejections.Inc() }

func (c *Collector) ObserveRequest(route, code string, d time.Duration) {
	c.requestDuration.WithLabelValues(route, code).Observe(d.Seconds())
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.uploads.Describe(ch)
	c.bytesSaved.Describe(ch)
	c.contentReclaimed.Describe(ch)
	c.orphanedBlobs.Describe(ch)
	c.rateLimited.Describe(ch)
	c.quotaRejections.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.uploads.Collect(ch)
	c.bytesSaved.Collect(ch)
	c.contentReclaimed.Collect(ch)
	c.orphanedBlobs.Collect(ch)
	c.rateLimited.Collect(ch)
	c.quotaRejections.Collect(ch)
	c.requestDuration.Collect(ch)
}
