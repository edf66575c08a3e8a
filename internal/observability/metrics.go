package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast service.
type Metrics struct {
	// Forecast metrics.
	ForecastsIssued   *prometheus.CounterVec // labels: status={AMAN,SIAGA,BAHAYA}
	ObservationSource *prometheus.CounterVec // labels: source={live,archive-gap,offline-simulated,connection-error}

	// Imagery catalog metrics.
	ImageryRequests    *prometheus.CounterVec // labels: outcome={live,gap,unreachable,error}
	ImageryAPIDuration prometheus.Histogram
	ImageryAvailable   prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={search,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={search,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={search,reverse}

	// Batch pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ForecastsIssued,
		m.ObservationSource,
		m.ImageryRequests,
		m.ImageryAPIDuration,
		m.ImageryAvailable,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ForecastsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "forecasts_issued_total",
			Help:      "Forecasts produced, by overall window status.",
		}, []string{"status"}),
		ObservationSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "observations_total",
			Help:      "Moisture observations used, by provenance label.",
		}, []string{"source"}),
		ImageryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "imagery_requests_total",
			Help:      "Imagery catalog lookups by outcome.",
		}, []string{"outcome"}),
		ImageryAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_forecast",
			Name:      "imagery_api_duration_seconds",
			Help:      "Imagery catalog search duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ImageryAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_forecast",
			Name:      "imagery_available",
			Help:      "1 when the imagery catalog was reachable at startup, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flood_forecast",
			Name:      "geocode_api_duration_seconds",
			Help:      "Nominatim API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "messages_consumed_total",
			Help:      "Total forecast requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "messages_produced_total",
			Help:      "Total forecasts written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_forecast",
			Name:      "transform_errors_total",
			Help:      "Total forecast requests that could not be processed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_forecast",
			Name:      "pipeline_running",
			Help:      "1 when the batch pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_forecast",
			Name:      "batch_size",
			Help:      "Number of forecast requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_forecast",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
