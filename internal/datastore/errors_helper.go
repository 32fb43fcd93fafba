// Package datastore provides error handling helpers for database operations
package datastore

import (
	"github.com/rcanpahali/BirdNet/internal/errors"
)

// ErrAnalysisNotFound is returned when an analysis id does not exist.
var ErrAnalysisNotFound = errors.NewStd("analysis not found")

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	// Add context pairs
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// notFoundError wraps ErrAnalysisNotFound so errors.Is still matches it.
func notFoundError(operation string, id uint) error {
	return errors.New(ErrAnalysisNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation).
		Context("analysis_id", id).
		Build()
}

// validationError creates a validation error (not sent to telemetry)
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}
