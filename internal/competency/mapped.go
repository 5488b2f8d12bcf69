package competency

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	HighConfidenceThreshold = 0.8
	LowConfidenceThreshold  = 0.5
)

// Level is a human readable confidence bucket.
type Level string

const (
	LevelHigh    Level = "High"
	LevelMedium  Level = "Medium"
	LevelLow     Level = "Low"
	LevelVeryLow Level = "Very Low"
)

// Mapped is a claim resolved to a taxonomy entry, with provenance.
type Mapped struct {
	ID              string         `json:"id"`
	SourceMessageID string         `json:"source_message_id,omitempty"`
	ConversationID  string         `json:"conversation_id,omitempty"`
	TaxonomyURI     string         `json:"taxonomy_uri"`
	Title           string         `json:"title"`
	Confidence      float64        `json:"confidence"`
	FrameworkSource string         `json:"framework_source"`
	Evidence        []string       `json:"evidence,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Validate checks the record invariants.
func (m *Mapped) Validate() error {
	if strings.TrimSpace(m.TaxonomyURI) == "" {
		return fmt.Errorf("mapped competency %q has no taxonomy uri", m.Title)
	}
	if !validConfidence(m.Confidence) {
		return fmt.Errorf("%w (got %v)", ErrInvalidConfidence, m.Confidence)
	}
	return nil
}

// UpdateConfidence replaces the confidence score. The record is left
// unchanged when score is out of range.
func (m *Mapped) UpdateConfidence(score float64) error {
	if !validConfidence(score) {
		return fmt.Errorf("%w (got %v)", ErrInvalidConfidence, score)
	}
	m.Confidence = score
	return nil
}

// AddEvidence appends a unique, non-empty evidence snippet.
func (m *Mapped) AddEvidence(evidence string) bool {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" || slices.Contains(m.Evidence, evidence) {
		return false
	}
	m.Evidence = append(m.Evidence, evidence)
	return true
}

// RemoveEvidence drops the snippet if present.
func (m *Mapped) RemoveEvidence(evidence string) bool {
	idx := slices.Index(m.Evidence, evidence)
	if idx < 0 {
		return false
	}
	m.Evidence = slices.Delete(m.Evidence, idx, idx+1)
	return true
}

func (m *Mapped) IsHighConfidence() bool { return m.Confidence >= HighConfidenceThreshold }

func (m *Mapped) IsLowConfidence() bool { return m.Confidence < LowConfidenceThreshold }

func (m *Mapped) ConfidenceLevel() Level {
	switch {
	case m.Confidence >= 0.8:
		return LevelHigh
	case m.Confidence >= 0.6:
		return LevelMedium
	case m.Confidence >= 0.4:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m *Mapped) Clone() *Mapped {
	if m == nil {
		return nil
	}
	out := *m
	out.Evidence = slices.Clone(m.Evidence)
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
