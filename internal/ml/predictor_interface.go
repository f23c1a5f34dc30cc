// Package ml provides churn inference over an exported random forest.
// It loads and validates the ensemble and scaler documents once at startup,
// standardizes the numeric features of each request and aggregates the leaf
// votes of every tree into a class label.
//
// All loaded state is immutable, so a single Predictor can serve any number
// of concurrent requests.
package ml

// PredictorInterface defines the interface for churn predictors used by the
// request boundary.
type PredictorInterface interface {
	// PredictFromFields returns the predicted class for raw request fields.
	// Client-caused failures are *features.FieldError values.
	PredictFromFields(fields map[string]string) (int, error)

	// Evaluate returns the predicted class together with the vote totals.
	Evaluate(fields map[string]string) (Prediction, error)

	// Info describes the loaded model.
	Info() ModelInfo
}

var _ PredictorInterface = (*Predictor)(nil)
