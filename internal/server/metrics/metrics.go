// Package metrics exposes Prometheus counters for the vault, the sweeper and
// the HTTP layer.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK                 = "ok"
	OutcomeValidation         = "validation"
	OutcomeDenied             = "denied"
	OutcomeStorageUnavailable = "storage_unavailable"
	OutcomePartialFailure     = "partial_failure"
	OutcomeError              = "error"
)

// Sweep kinds.
const (
	SweptRecords = "records"
	SweptBlobs   = "blobs"
)

// Metrics is what the service layers record.
type Metrics interface {
	IncUpload(outcome string)
	IncDownload(outcome string)
	AddSwept(kind string, n int)
	IncSweepErrors()
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncUpload(string)                                 {}
func (Noop) IncDownload(string)                               {}
func (Noop) AddSwept(string, int)                             {}
func (Noop) IncSweepErrors()                                  {}
func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements Metrics backed by Prometheus collectors registered on the
// default registerer.
type Prom struct {
	uploads     *prometheus.CounterVec
	downloads   *prometheus.CounterVec
	swept       *prometheus.CounterVec
	sweepErrors prometheus.Counter
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	once        sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_requests_total",
			Help:      "Upload requests by outcome",
		}, []string{"outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_requests_total",
			Help:      "Download requests by outcome",
		}, []string{"outcome"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_total",
			Help:      "Expired records and blobs removed by the sweeper",
		}, []string{"kind"}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Sweeper passes or blob deletions that failed",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.uploads, p.downloads, p.swept, p.sweepErrors, p.requests, p.latency)
	})
}

func (p *Prom) IncUpload(outcome string) {
	p.uploads.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncDownload(outcome string) {
	p.downloads.WithLabelValues(outcome).Inc()
}

func (p *Prom) AddSwept(kind string, n int) {
	if n > 0 {
		p.swept.WithLabelValues(kind).Add(float64(n))
	}
}

func (p *Prom) IncSweepErrors() {
	p.sweepErrors.Inc()
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
