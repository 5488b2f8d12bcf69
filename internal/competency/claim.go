// Package competency holds the value types shared by extraction, resolution
// and the conversation aggregate.
package competency

import (
	"fmt"
	"math"
	"strings"
)

// Category is the coarse kind of a claimed skill.
type Category string

const (
	Technical      Category = "technical"
	Soft           Category = "soft"
	DomainSpecific Category = "domain-specific"
	Other          Category = "other"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{Technical, Soft, DomainSpecific, Other}
}

func (c Category) Valid() bool {
	switch c {
	case Technical, Soft, DomainSpecific, Other:
		return true
	default:
		return false
	}
}

// Claim is a free-text skill assertion extracted from an assistant turn.
// It is not yet tied to any taxonomy entry.
type Claim struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence"`
}

// Validate checks the claim invariants.
func (c Claim) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidClaim)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidClaim, c.Category)
	}
	if !validConfidence(c.Confidence) {
		return fmt.Errorf("%w: %w (got %v)", ErrInvalidClaim, ErrInvalidConfidence, c.Confidence)
	}
	return nil
}

func validConfidence(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
