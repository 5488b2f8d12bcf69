package competency

import "errors"

var (
	// ErrInvalidClaim is returned when a skill claim violates its invariants.
	ErrInvalidClaim = errors.New("invalid skill claim")
	// ErrInvalidConfidence is returned for confidence scores outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)
