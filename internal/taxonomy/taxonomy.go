// Package taxonomy describes the external skill taxonomy search backend.
package taxonomy

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when the taxonomy backend cannot be reached.
var ErrUnavailable = errors.New("taxonomy unavailable")

const noDescription = "No description available"

// Candidate is one ranked taxonomy entry returned by a search.
type Candidate struct {
	ID                string            `json:"id"`
	URI               string            `json:"uri"`
	Title             string            `json:"title"`
	ReferenceLanguage string            `json:"reference_language,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
	Descriptions      map[string]string `json:"descriptions,omitempty"`
	Links             map[string]any    `json:"links,omitempty"`
}

// Label returns the preferred label in lang, falling back to the title.
func (c Candidate) Label(lang string) string {
	if label := strings.TrimSpace(c.Labels[lang]); label != "" {
		return label
	}
	return c.Title
}

// Description returns the description in lang, then in the reference
// language, then a placeholder.
func (c Candidate) Description(lang string) string {
	if desc := strings.TrimSpace(c.Descriptions[lang]); desc != "" {
		return desc
	}
	if desc := strings.TrimSpace(c.Descriptions[c.ReferenceLanguage]); desc != "" {
		return desc
	}
	return noDescription
}

// Client searches the taxonomy. Results keep the backend's ranking order.
type Client interface {
	Search(ctx context.Context, query, language string, limit int) ([]Candidate, error)
	Name() string
}
