package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Page outcomes and record sources used as metric labels
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"

	SourceCard        = "card"
	SourceOwner       = "owner"
	SourceDetail      = "detail"
	SourcePlaceholder = "placeholder"
)

// Metrics bundles Prometheus collectors for crawl sessions
type Metrics struct {
	Registry         *prometheus.Registry
	PagesVisited     *prometheus.CounterVec
	RecordsExtracted *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	FallbackRuns     prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcrawler_pages_visited_total",
			Help: "Listing pages visited, by outcome.",
		},
		[]string{"outcome"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcrawler_records_extracted_total",
			Help: "New records added to the result map, by extraction source.",
		},
		[]string{"source"},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcrawler_fetch_errors_total",
			Help: "Failed page fetches, by error type.",
		},
		[]string{"error_type"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketcrawler_fetch_duration_seconds",
			Help:    "Page fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fallbackRuns := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketcrawler_fallback_runs_total",
			Help: "Pages on which the regex ID fallback ran.",
		},
	)

	registry.MustRegister(pages, records, fetchErrors, fetchDuration, fallbackRuns)

	return &Metrics{
		Registry:         registry,
		PagesVisited:     pages,
		RecordsExtracted: records,
		FetchErrors:      fetchErrors,
		FetchDuration:    fetchDuration,
		FallbackRuns:     fallbackRuns,
	}
}

// IncPage counts a visited page
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesVisited.WithLabelValues(outcome).Inc()
}

// AddRecords counts n new records from source
func (m *Metrics) AddRecords(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsExtracted.WithLabelValues(source).Add(float64(n))
}

// IncFetchError counts a failed fetch
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(errorType).Inc()
}

// ObserveFetch records a fetch duration
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFallback counts a fallback run
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.FallbackRuns.Inc()
}
