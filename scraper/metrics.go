package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a scrape run.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	DelaySeconds      prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	CellsUploaded     prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total product page requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for product page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	delay := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_courtesy_delay_seconds",
			Help:    "Randomised pause taken before each request.",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 5},
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of product records produced.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of failed identifiers by error type.",
		},
		[]string{"error_type"},
	)
	cells := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_sheet_cells_uploaded_total",
			Help: "Total number of spreadsheet cells written.",
		},
	)

	registry.MustRegister(requests, requestDuration, delay, itemsScraped, errorsTotal, cells)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		DelaySeconds:      delay,
		ItemsScrapedTotal: itemsScraped,
		ErrorsTotal:       errorsTotal,
		CellsUploaded:     cells,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// ObserveDelay records the pause taken before a request.
func (m *Metrics) ObserveDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.DelaySeconds.Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddCells records spreadsheet cells written by an upload.
func (m *Metrics) AddCells(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CellsUploaded.Add(float64(n))
}
