package features

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

var (
	trueTokens  = map[string]struct{}{"yes": {}, "true": {}, "1": {}, "y": {}}
	falseTokens = map[string]struct{}{"no": {}, "false": {}, "0": {}, "n": {}}
)

// Build converts raw request fields into an unscaled Vector.
//
// Fields are checked in vector order and the first problem is returned as a
// *FieldError. The input map is not modified.
func Build(fields map[string]string) (Vector, error) {
	var v Vector
	for i, f := range schema {
		raw, ok := fields[f.Key]
		if !ok {
			return Vector{}, &FieldError{Kind: MissingField, Field: f.Key}
		}

		switch f.Kind {
		case Categorical:
			b, err := ParseBool(f.Key, raw)
			if err != nil {
				return Vector{}, err
			}
			v[i] = b
		case Numeric:
			n, err := ParseNumber(f.Key, raw)
			if err != nil {
				return Vector{}, err
			}
			v[i] = n
		}
	}
	return v, nil
}

// ParseBool normalizes a boolean-like value to 1 or 0. Matching ignores case
// and surrounding whitespace.
func ParseBool(field, raw string) (float64, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := trueTokens[token]; ok {
		return 1, nil
	}
	if _, ok := falseTokens[token]; ok {
		return 0, nil
	}
	return 0, &FieldError{Kind: UnsupportedValue, Field: field, Value: raw}
}

// ParseNumber parses a finite float64. NaN and infinities are rejected.
func ParseNumber(field, raw string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &FieldError{Kind: InvalidNumber, Field: field, Value: raw}
	}
	return n, nil
}

// FieldsFromForm picks the schema keys out of submitted form values, taking
// the first value of each key. Keys absent from the form stay absent.
func FieldsFromForm(form url.Values) map[string]string {
	fields := make(map[string]string, Size)
	for _, f := range schema {
		if vals, ok := form[f.Key]; ok && len(vals) > 0 {
			fields[f.Key] = vals[0]
		}
	}
	return fields
}
