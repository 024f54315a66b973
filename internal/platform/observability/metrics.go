package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArticlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_articles_ingested_total",
		Help: "Total number of URLs accepted by ingest_urls",
	}, []string{"status"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_jobs_processed_total",
		Help: "Total number of ingest jobs processed by the worker, by terminal status",
	}, []string{"status"})

	JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intel_job_queue_depth",
		Help: "Number of jobs currently claimable (queued, queued_no_enrich, retry)",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_fetch_duration_seconds",
		Help:    "Duration of article fetch requests",
		Buckets: prometheus.DefBuckets,
	})

	FetchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_fetch_results_total",
		Help: "Total number of fetch attempts by outcome",
	}, []string{"outcome"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_extraction_duration_seconds",
		Help:    "Duration of HTML extraction and sectionising",
		Buckets: prometheus.DefBuckets,
	})

	EnrichmentRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_enrichment_request_duration_seconds",
		Help:    "Duration of LLM enrichment requests",
		Buckets: prometheus.DefBuckets,
	})

	EnrichmentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_enrichment_requests_total",
		Help: "Total number of enrichment requests by result",
	}, []string{"result"})

	EnrichmentCircuitBreakerOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_enrichment_circuit_breaker_opens_total",
		Help: "Total number of times the enrichment circuit breaker tripped open",
	})

	ContextPackRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intel_context_pack_requests_total",
		Help: "Total number of context pack requests by confidence tier",
	}, []string{"confidence"})

	ContextPackItemCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intel_context_pack_items",
		Help:    "Distribution of item counts returned per context pack",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10},
	})
)
