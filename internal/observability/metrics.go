package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the PET map service.
type Metrics struct {
	Interactions      prometheus.Counter
	InteractionErrors *prometheus.CounterVec // labels: stage={lookup,predict,log,trend,input}
	Ready             prometheus.Gauge
	DatasetRows       *prometheus.GaugeVec // labels: coords={valid,missing}

	// Weather metrics.
	WeatherRequests    *prometheus.CounterVec   // labels: endpoint={weather,forecast}, outcome={success,network_error,parse_error}
	WeatherFallbacks   *prometheus.CounterVec   // labels: reason={network_error,parse_error,disabled}
	WeatherCache       *prometheus.CounterVec   // labels: result={hit,miss}
	WeatherAPIDuration *prometheus.HistogramVec // labels: endpoint={weather,forecast}

	// Model and log metrics.
	Predictions     prometheus.Counter
	PredictDuration prometheus.Histogram
	LogAppends      prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()

	prometheus.MustRegister(
		m.Interactions,
		m.InteractionErrors,
		m.Ready,
		m.DatasetRows,
		m.WeatherRequests,
		m.WeatherFallbacks,
		m.WeatherCache,
		m.WeatherAPIDuration,
		m.Predictions,
		m.PredictDuration,
		m.LogAppends,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Interactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "interactions_total",
			Help:      "Total map interactions handled.",
		}),
		InteractionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "interaction_errors_total",
			Help:      "Failed interactions by stage.",
		}, []string{"stage"}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pet_map",
			Name:      "ready",
			Help:      "1 when the reference dataset is loaded, 0 otherwise.",
		}),
		DatasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pet_map",
			Name:      "dataset_rows",
			Help:      "Reference rows loaded, by coordinate validity.",
		}, []string{"coords"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "weather_requests_total",
			Help:      "OpenWeather requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		WeatherFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "weather_fallbacks_total",
			Help:      "Interactions that used dataset conditions instead of live weather.",
		}, []string{"reason"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pet_map",
			Name:      "weather_api_duration_seconds",
			Help:      "OpenWeather request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		Predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "predictions_total",
			Help:      "Total PET predictions made.",
		}),
		PredictDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pet_map",
			Name:      "predict_duration_seconds",
			Help:      "Duration of a single model predict call.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		LogAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "log_appends_total",
			Help:      "Prediction events appended to the log.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pet_map",
			Name:      "publish_errors_total",
			Help:      "Prediction events that failed to publish to Kafka.",
		}),
	}
}
