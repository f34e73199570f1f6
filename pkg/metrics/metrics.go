package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered at package load so that every package, tests
// included, can record without an init step.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapes_total",
			Help: "Total number of scrape calls.",
		},
		[]string{"mode", "status"}, // status: success, failure
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_duration_seconds",
			Help:    "Duration of scrape calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"mode"},
	)

	ImagesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "images_extracted_total",
			Help: "Total number of image references returned to callers.",
		},
		[]string{"mode"},
	)

	ScrollRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_scroll_rounds",
			Help:    "Scroll rounds performed per rendered page.",
			Buckets: []float64{1, 2, 3, 4, 5, 10},
		},
	)

	BrowserSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browser_sessions_active",
			Help: "Headless browser sessions currently held.",
		},
	)

	RelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of relayed image requests.",
		},
		[]string{"outcome"}, // outcome: fetched, cache_hit, failure
	)

	ArchiveEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_entries_total",
			Help: "Archive entries by outcome.",
		},
		[]string{"outcome"}, // outcome: added, duplicate, failed
	)

	ArchiveBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_build_duration_seconds",
			Help:    "Duration of archive builds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)
)
