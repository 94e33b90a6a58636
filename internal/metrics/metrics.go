// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// URLsScraped tracks URLs successfully fetched and persisted.
	URLsScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holocron_urls_scraped_total",
		Help: "The total number of URLs successfully scraped and saved.",
	})
	// URLsFailed tracks URLs that exhausted their retry budget.
	URLsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holocron_urls_failed_total",
		Help: "The total number of URLs marked failed.",
	})
	// URLsEnqueued tracks insertions into the pending frontier.
	URLsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holocron_urls_enqueued_total",
		Help: "The total number of URLs added to the frontier.",
	})
	// FrontierPending gauges the current pending frontier size.
	FrontierPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "holocron_frontier_pending",
		Help: "The number of URLs currently pending in the frontier.",
	})
	// ActiveWorkers gauges workers currently running their loop.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "holocron_active_workers",
		Help: "Number of crawl workers currently running.",
	})
)
