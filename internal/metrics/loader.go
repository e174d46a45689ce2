package metrics

import "github.com/prometheus/client_golang/prometheus"

// Loader and pipeline Prometheus metrics.
var (
	LoaderPackagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_packages_total",
			Help:      "Bulk packages sent to the index",
		},
		[]string{"status"}, // "ok" / "transport_error" / "application_error"
	)

	LoaderDocumentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_documents_total",
			Help:      "Documents acknowledged by the index",
		},
	)

	LoaderPackageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_package_duration_seconds",
			Help:      "Bulk package request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	PipelineStage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_stage",
			Help:      "1 for the current pipeline state, 0 otherwise",
		},
		[]string{"state"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by terminal state",
		},
		[]string{"result"},
	)
)

func loaderCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		LoaderPackagesTotal,
		LoaderDocumentsTotal,
		LoaderPackageDuration,
		PipelineStage,
		PipelineRunsTotal,
	}
}
