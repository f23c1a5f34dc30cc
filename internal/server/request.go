package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"churn-predictor/internal/features"
)

var errInvalidBody = errors.New("request body must be a JSON object")

// fieldsFromJSON pulls the schema keys out of a JSON object. Values may be
// strings, numbers or booleans; numbers keep their literal text so parsing
// matches the form path exactly. Null counts as absent. Unknown keys are
// ignored. A schema key given more than once is rejected, since decoders
// disagree on which occurrence wins.
func fieldsFromJSON(body []byte) (map[string]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed JSON", errInvalidBody)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errInvalidBody
	}

	if key, ok := duplicateKey(root); ok {
		return nil, fmt.Errorf("%w: duplicate key %q", errInvalidBody, key)
	}

	fields := make(map[string]string, features.Size)
	for _, key := range features.FieldKeys() {
		v := root.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		fields[key] = jsonValueString(v)
	}
	return fields, nil
}

func jsonValueString(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		// Numbers and nested values; the latter fail validation downstream.
		return strings.TrimSpace(v.Raw)
	}
}

func duplicateKey(root gjson.Result) (string, bool) {
	known := make(map[string]bool, features.Size)
	for _, key := range features.FieldKeys() {
		known[key] = false
	}

	var dup string
	root.ForEach(func(k, _ gjson.Result) bool {
		seen, ok := known[k.Str]
		if !ok {
			return true
		}
		if seen {
			dup = k.Str
			return false
		}
		known[k.Str] = true
		return true
	})
	return dup, dup != ""
}
