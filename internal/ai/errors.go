package ai

import "errors"

var (
	// ErrModelUnavailable covers transport failures, exhausted quotas and empty responses.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrSchemaViolation is returned when model output does not match the requested schema.
	ErrSchemaViolation = errors.New("model output violates schema")
)
