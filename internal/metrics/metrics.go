// Package metrics declares the process-wide Prometheus counters C11
// exposes on GET /metrics (spec SPEC_FULL.md §4.11). Counters are
// package-level so any component can record against them without
// threading a recorder through every constructor, matching how
// prometheus/client_golang is normally wired in a single-binary
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts outbound HTTP fetches by platform and
	// terminal classification (ok, banned, rate_limited, forbidden,
	// not_found, transport_error).
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_ingest_fetches_total",
		Help: "Outbound platform fetches by platform and result status.",
	}, []string{"platform", "status"})

	// ProxyFailuresTotal counts proxy-attributed request failures.
	ProxyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_ingest_proxy_failures_total",
		Help: "Requests that failed through a given proxy.",
	}, []string{"proxy_id"})

	// ItemsProcessedTotal counts subreddits/users/creators processed
	// per scraper per cycle.
	ItemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_ingest_items_processed_total",
		Help: "Items processed per scraper.",
	}, []string{"scraper"})

	// CategorizationJobsTotal counts categorization batches by terminal
	// status.
	CategorizationJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "social_ingest_categorization_jobs_total",
		Help: "Categorization batches started, by terminal status.",
	}, []string{"status"})
)
