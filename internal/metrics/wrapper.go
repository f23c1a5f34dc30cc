package metrics

import "strconv"

// Recorder adapts Metrics to the narrow interfaces the predictor and the HTTP
// server consume, so neither needs to import prometheus.
type Recorder struct {
	m *Metrics
}

func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) PredictionObserve(class int) {
	r.m.Predictions.WithLabelValues(strconv.Itoa(class)).Inc()
}

func (r *Recorder) ValidationErrorInc(kind string) {
	r.m.ValidationErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) InternalErrorInc() {
	r.m.InternalErrors.Inc()
}

func (r *Recorder) LatencyObserve(seconds float64) {
	r.m.PredictionLatency.Observe(seconds)
}

func (r *Recorder) HTTPRequestInc(path string, code int) {
	r.m.HTTPRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// SetArtifactInfo records the loaded ensemble size and artifact age.
func (r *Recorder) SetArtifactInfo(trees int, ageSeconds float64) {
	r.m.EnsembleTrees.Set(float64(trees))
	r.m.ArtifactAge.Set(ageSeconds)
}
