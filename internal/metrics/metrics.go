// Package metrics provides Prometheus metrics collection for the churn
// prediction service. It defines the inference, artifact and HTTP metrics
// exposed via the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inference metrics
	Predictions       *prometheus.CounterVec // Predictions by predicted class
	ValidationErrors  *prometheus.CounterVec // Rejected requests by error kind
	InternalErrors    prometheus.Counter     // Failures not caused by the request
	PredictionLatency prometheus.Histogram   // Build + scale + ensemble latency

	// Artifact metrics
	EnsembleTrees prometheus.Gauge // Number of trees in the loaded ensemble
	ArtifactAge   prometheus.Gauge // Age of the loaded artifacts in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Requests by path and status code
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "churn_predictions_total",
			Help: "Total number of churn predictions by predicted class",
		}, []string{"class"}),
		ValidationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "churn_validation_errors_total",
			Help: "Total number of rejected prediction requests by error kind",
		}, []string{"kind"}),
		InternalErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "churn_internal_errors_total",
			Help: "Total number of prediction failures not caused by the request",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "churn_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (feature build to class label)",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		EnsembleTrees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "churn_ensemble_trees",
			Help: "Number of trees in the loaded ensemble",
		}),
		ArtifactAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "churn_artifact_age_seconds",
			Help: "Age of the loaded model artifacts in seconds at startup",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path and status code",
		}, []string{"path", "code"}),
	}
}
