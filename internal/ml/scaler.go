package ml

import (
	"fmt"
	"math"

	"churn-predictor/internal/features"
)

// Scaler standardizes the numeric slice of a feature vector with the mean and
// scale fitted at training time.
type Scaler struct {
	mean  []float64
	scale []float64
}

// NewScaler validates and copies the fitted parameters. Both slices must hold
// one finite entry per numeric feature and no scale may be zero.
func NewScaler(mean, scale []float64) (*Scaler, error) {
	if len(mean) != features.NumNumeric || len(scale) != features.NumNumeric {
		return nil, fmt.Errorf("%w: scaler has %d means and %d scales, expected %d",
			ErrCorruptArtifact, len(mean), len(scale), features.NumNumeric)
	}
	for i := range mean {
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) {
			return nil, fmt.Errorf("%w: scaler mean %d is not finite", ErrCorruptArtifact, i)
		}
		if scale[i] == 0 || math.IsNaN(scale[i]) || math.IsInf(scale[i], 0) {
			return nil, fmt.Errorf("%w: scaler scale %d is %v", ErrCorruptArtifact, i, scale[i])
		}
	}
	return &Scaler{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
	}, nil
}

// Scale returns (raw[i]-mean[i])/scale[i] for every entry. A length mismatch
// is a programming error and panics.
func (s *Scaler) Scale(raw []float64) []float64 {
	if len(raw) != len(s.mean) {
		panic(fmt.Sprintf("ml: scaler expects %d values, got %d", len(s.mean), len(raw)))
	}
	out := make([]float64, len(raw))
	for i, x := range raw {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out
}

// Apply scales the numeric slice of v; the plan flags pass through untouched.
func (s *Scaler) Apply(v features.Vector) features.Vector {
	return v.WithNumeric(s.Scale(v.Numeric()))
}
