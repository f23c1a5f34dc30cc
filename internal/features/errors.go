package features

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected request field.
type ErrorKind int

const (
	MissingField ErrorKind = iota + 1
	UnsupportedValue
	InvalidNumber
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case UnsupportedValue:
		return "unsupported_value"
	case InvalidNumber:
		return "invalid_number"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching on a FieldError's kind.
var (
	ErrMissingField     = errors.New("missing field")
	ErrUnsupportedValue = errors.New("unsupported value")
	ErrInvalidNumber    = errors.New("invalid number")
)

// FieldError reports a client-caused problem with a single request field.
type FieldError struct {
	Kind  ErrorKind
	Field string
	Value string // raw value; empty for MissingField
}

func (e *FieldError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case UnsupportedValue:
		return fmt.Sprintf("unsupported boolean-like value %q for field %q", e.Value, e.Field)
	case InvalidNumber:
		return fmt.Sprintf("invalid number %q for field %q", e.Value, e.Field)
	default:
		return fmt.Sprintf("invalid field %q", e.Field)
	}
}

func (e *FieldError) Unwrap() error {
	switch e.Kind {
	case MissingField:
		return ErrMissingField
	case UnsupportedValue:
		return ErrUnsupportedValue
	case InvalidNumber:
		return ErrInvalidNumber
	}
	return nil
}

// IsValidationError reports whether err was caused by the request content
// rather than by the service.
func IsValidationError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// AsFieldError extracts the FieldError wrapped in err, if any.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
