package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	recorder := NewRecorder(metrics)

	if recorder == nil {
		t.Fatal("NewRecorder returned nil")
	}
	if recorder.m != metrics {
		t.Error("Recorder does not contain correct metrics instance")
	}
}

func TestRecorder_Predictions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	recorder := NewRecorder(metrics)

	recorder.PredictionObserve(1)
	recorder.PredictionObserve(1)
	recorder.PredictionObserve(0)

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("1")); v != 2 {
		t.Errorf("Expected 2 predictions of class 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("0")); v != 1 {
		t.Errorf("Expected 1 prediction of class 0, got %f", v)
	}
}

func TestRecorder_Errors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	recorder := NewRecorder(metrics)

	recorder.ValidationErrorInc("missing_field")
	recorder.ValidationErrorInc("missing_field")
	recorder.ValidationErrorInc("invalid_number")
	recorder.InternalErrorInc()

	if v := testutil.ToFloat64(metrics.ValidationErrors.WithLabelValues("missing_field")); v != 2 {
		t.Errorf("Expected 2 missing_field errors, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ValidationErrors.WithLabelValues("invalid_number")); v != 1 {
		t.Errorf("Expected 1 invalid_number error, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.InternalErrors); v != 1 {
		t.Errorf("Expected 1 internal error, got %f", v)
	}
}

func TestRecorder_Latency(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	recorder := NewRecorder(metrics)

	for _, v := range []float64{0.0001, 0.0002, 0.0005} {
		recorder.LatencyObserve(v)
	}

	if count := testutil.CollectAndCount(metrics.PredictionLatency); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}
}

func TestRecorder_HTTPAndArtifacts(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	recorder := NewRecorder(metrics)

	recorder.HTTPRequestInc("/api/v1/predict", 200)
	recorder.HTTPRequestInc("/api/v1/predict", 400)
	recorder.HTTPRequestInc("/api/v1/predict", 400)
	recorder.SetArtifactInfo(100, 3600)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/v1/predict", "400")); v != 2 {
		t.Errorf("Expected 2 bad requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.EnsembleTrees); v != 100 {
		t.Errorf("Expected 100 trees, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ArtifactAge); v != 3600 {
		t.Errorf("Expected artifact age 3600, got %f", v)
	}
}

func TestNewWithRegistry_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	NewRecorder(metrics).PredictionObserve(0)
	NewRecorder(metrics).ValidationErrorInc("missing_field")
	NewRecorder(metrics).HTTPRequestInc("/", 200)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"churn_predictions_total",
		"churn_validation_errors_total",
		"churn_internal_errors_total",
		"churn_prediction_latency_seconds",
		"churn_ensemble_trees",
		"churn_artifact_age_seconds",
		"http_requests_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when registering metrics twice")
		}
	}()
	NewWithRegistry(registry)
}
