package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Forecast pipeline errors. Every one of them is fatal to the current request:
// no partial forecast is produced and nothing is retried.

// SchemaError reports a malformed or incomplete upload
type SchemaError struct {
	Missing []string // required columns that are absent
	Row     int      // 1-based data row, 0 when not row specific
	Column  string
	Value   string
	Reason  string
}

func (e *SchemaError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("uploaded file is missing required columns: %s", strings.Join(e.Missing, ", "))
	case e.Row > 0:
		return fmt.Sprintf("row %d, column %s: %s (value %q)", e.Row, e.Column, e.Reason, e.Value)
	default:
		return "invalid upload: " + e.Reason
	}
}

// EmptyDatasetError reports an upload without data rows
type EmptyDatasetError struct{}

func (e *EmptyDatasetError) Error() string {
	return "uploaded file contains no sales rows"
}

// ModelNotFoundError reports a missing, unreadable or undecodable model artifact
type ModelNotFoundError struct {
	Path  string
	Cause error
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model file '%s' not found or unreadable", e.Path)
}

func (e *ModelNotFoundError) Unwrap() error { return e.Cause }

// FeatureMismatchError reports a disagreement between the columns available
// for scoring and the features the model expects
type FeatureMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *FeatureMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing features: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected features: "+strings.Join(e.Unexpected, ", "))
	}
	if len(parts) == 0 {
		return "feature set does not match the model"
	}
	return "feature set does not match the model: " + strings.Join(parts, "; ")
}

// ModelInferenceError reports a failed or malformed model call
type ModelInferenceError struct {
	Reason string
	Cause  error
}

func (e *ModelInferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model prediction failed: %s: %v", e.Reason, e.Cause)
	}
	return "model prediction failed: " + e.Reason
}

func (e *ModelInferenceError) Unwrap() error { return e.Cause }

// InvariantViolationError reports a broken pipeline post-condition. It signals
// a logic defect rather than bad input.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}

// Lookup and query errors
var (
	ErrSessionNotFound = errors.New("forecast session not found")
	ErrUnknownSKU      = errors.New("unknown SKU")
	ErrUnknownStore    = errors.New("unknown store")
	ErrNoSeriesData    = errors.New("no data found for this store and SKU combination")
	ErrInvalidHorizon  = errors.New("invalid forecast horizon")
	ErrNoForecast      = errors.New("session has no forecast yet")
)
