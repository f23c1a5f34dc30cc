// Package features converts raw customer attributes into the canonical
// feature vector consumed by the churn ensemble.
//
// The schema is fixed: two boolean-like plan flags followed by eleven numeric
// usage attributes. The same order is used for request keys, for the feature
// names recorded in exported artifacts and for the vector positions.
package features

const (
	NumCategorical = 2
	NumNumeric     = 11
	Size           = NumCategorical + NumNumeric
)

// Kind tells the builder how a raw value is parsed.
type Kind int

const (
	Categorical Kind = iota
	Numeric
)

// Field describes one position of the feature vector.
type Field struct {
	Key  string // request key, e.g. "total_day_minutes"
	Name string // artifact feature name, e.g. "Total day minutes"
	Kind Kind
}

var schema = [Size]Field{
	{Key: "international_plan", Name: "International plan", Kind: Categorical},
	{Key: "voice_mail_plan", Name: "Voice mail plan", Kind: Categorical},
	{Key: "account_length", Name: "Account length", Kind: Numeric},
	{Key: "number_vmail_messages", Name: "Number vmail messages", Kind: Numeric},
	{Key: "total_day_minutes", Name: "Total day minutes", Kind: Numeric},
	{Key: "total_day_calls", Name: "Total day calls", Kind: Numeric},
	{Key: "total_eve_minutes", Name: "Total eve minutes", Kind: Numeric},
	{Key: "total_eve_calls", Name: "Total eve calls", Kind: Numeric},
	{Key: "total_night_minutes", Name: "Total night minutes", Kind: Numeric},
	{Key: "total_night_calls", Name: "Total night calls", Kind: Numeric},
	{Key: "total_intl_minutes", Name: "Total intl minutes", Kind: Numeric},
	{Key: "total_intl_calls", Name: "Total intl calls", Kind: Numeric},
	{Key: "customer_service_calls", Name: "Customer service calls", Kind: Numeric},
}

// Schema returns the canonical fields in vector order.
func Schema() []Field {
	out := make([]Field, Size)
	copy(out, schema[:])
	return out
}

// FieldKeys returns the request keys in vector order.
func FieldKeys() []string {
	keys := make([]string, Size)
	for i, f := range schema {
		keys[i] = f.Key
	}
	return keys
}

// FeatureNames returns the artifact feature names in vector order.
func FeatureNames() []string {
	names := make([]string, Size)
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// NumericFeatureNames returns the names of the scaled slice, positions
// NumCategorical through Size-1.
func NumericFeatureNames() []string {
	return FeatureNames()[NumCategorical:]
}

// Vector is the canonical feature vector. Positions 0-1 hold the plan flags
// (0 or 1), positions 2-12 the numeric attributes.
type Vector [Size]float64

// Numeric returns a copy of the numeric slice.
func (v Vector) Numeric() []float64 {
	out := make([]float64, NumNumeric)
	copy(out, v[NumCategorical:])
	return out
}

// WithNumeric returns a copy of v whose numeric slice is replaced by values.
// It panics if len(values) != NumNumeric.
func (v Vector) WithNumeric(values []float64) Vector {
	if len(values) != NumNumeric {
		panic("features: numeric slice must have exactly 11 values")
	}
	copy(v[NumCategorical:], values)
	return v
}
