package ml

import (
	"errors"
	"fmt"
	"time"

	"churn-predictor/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionObserve(class int)
	ValidationErrorInc(kind string)
	InternalErrorInc()
	LatencyObserve(seconds float64)
}

// ModelInfo describes the artifacts a Predictor was built from.
type ModelInfo struct {
	Source       string    `json:"source"`
	Version      string    `json:"version,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Trees        int       `json:"trees"`
	Classes      []int     `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithMetrics reports every prediction to m.
func WithMetrics(m MetricsInterface) Option {
	return func(p *Predictor) { p.metrics = m }
}

// WithSource records where the artifacts came from, for ModelInfo.
func WithSource(source, version string, createdAt time.Time) Option {
	return func(p *Predictor) {
		p.source = source
		p.version = version
		p.createdAt = createdAt
	}
}

// Predictor turns raw request fields into a churn class. It holds only
// read-only state and is safe for concurrent use without locking.
type Predictor struct {
	ensemble  *Ensemble
	scaler    *Scaler
	metrics   MetricsInterface
	source    string
	version   string
	createdAt time.Time
}

func New(ensemble *Ensemble, scaler *Scaler, opts ...Option) (*Predictor, error) {
	if ensemble == nil {
		return nil, errors.New("ensemble is nil")
	}
	if scaler == nil {
		return nil, errors.New("scaler is nil")
	}
	p := &Predictor{ensemble: ensemble, scaler: scaler}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PredictFromFields builds, scales and classifies one request. Validation
// errors from the builder are returned unchanged.
func (p *Predictor) PredictFromFields(fields map[string]string) (int, error) {
	pred, err := p.Evaluate(fields)
	if err != nil {
		return 0, err
	}
	return pred.Class, nil
}

// Evaluate is PredictFromFields with the per-class vote totals.
func (p *Predictor) Evaluate(fields map[string]string) (Prediction, error) {
	if p == nil {
		return Prediction{}, fmt.Errorf("predictor is nil")
	}

	start := time.Now()
	v, err := features.Build(fields)
	if err != nil {
		if fe, ok := features.AsFieldError(err); ok && p.metrics != nil {
			p.metrics.ValidationErrorInc(fe.Kind.String())
		}
		return Prediction{}, err
	}

	pred, err := p.evaluate(v)
	if p.metrics != nil {
		p.metrics.LatencyObserve(time.Since(start).Seconds())
	}
	return pred, err
}

// EvaluateVector classifies an unscaled vector.
func (p *Predictor) EvaluateVector(v features.Vector) (Prediction, error) {
	if p == nil {
		return Prediction{}, fmt.Errorf("predictor is nil")
	}
	return p.evaluate(v)
}

func (p *Predictor) evaluate(v features.Vector) (Prediction, error) {
	scaled := p.scaler.Apply(v)
	pred, err := p.ensemble.Evaluate(scaled)
	if err != nil {
		log.Error().
			Err(err).
			Str("source", p.source).
			Str("version", p.version).
			Interface("features", v).
			Msg("Ensemble evaluation failed")
		if p.metrics != nil {
			p.metrics.InternalErrorInc()
		}
		return Prediction{}, err
	}

	if p.metrics != nil {
		p.metrics.PredictionObserve(pred.Class)
	}

	log.Debug().
		Interface("features", v).
		Interface("votes", pred.Votes).
		Int("prediction", pred.Class).
		Msg("Prediction successful")

	return pred, nil
}

// Info summarizes the loaded model.
func (p *Predictor) Info() ModelInfo {
	return ModelInfo{
		Source:       p.source,
		Version:      p.version,
		CreatedAt:    p.createdAt,
		Trees:        p.ensemble.NumTrees(),
		Classes:      p.ensemble.Classes(),
		FeatureNames: p.ensemble.FeatureNames(),
	}
}
