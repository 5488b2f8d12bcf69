package competency

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		claim   Claim
		wantErr bool
	}{
		{name: "valid", claim: Claim{Name: "Python programming", Category: Technical, Confidence: 0.9}},
		{name: "empty name", claim: Claim{Name: "  ", Category: Soft, Confidence: 0.5}, wantErr: true},
		{name: "bad category", claim: Claim{Name: "Go", Category: "hard", Confidence: 0.5}, wantErr: true},
		{name: "confidence above one", claim: Claim{Name: "Go", Category: Technical, Confidence: 1.2}, wantErr: true},
		{name: "nan confidence", claim: Claim{Name: "Go", Category: Technical, Confidence: math.NaN()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.claim.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidClaim))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMappedConfidence(t *testing.T) {
	m := &Mapped{TaxonomyURI: "http://data.europa.eu/esco/skill/x", Confidence: 0.7}

	require.Error(t, m.UpdateConfidence(1.5))
	assert.Equal(t, 0.7, m.Confidence)
	assert.Equal(t, LevelMedium, m.ConfidenceLevel())

	require.NoError(t, m.UpdateConfidence(0.85))
	assert.True(t, m.IsHighConfidence())
	assert.Equal(t, LevelHigh, m.ConfidenceLevel())

	require.NoError(t, m.UpdateConfidence(0.45))
	assert.True(t, m.IsLowConfidence())
	assert.Equal(t, LevelLow, m.ConfidenceLevel())

	require.NoError(t, m.UpdateConfidence(0.1))
	assert.Equal(t, LevelVeryLow, m.ConfidenceLevel())
	require.NoError(t, m.Validate())
}

func TestMappedEvidence(t *testing.T) {
	m := &Mapped{}

	assert.True(t, m.AddEvidence("built data pipelines"))
	assert.False(t, m.AddEvidence("built data pipelines"))
	assert.False(t, m.AddEvidence("   "))
	assert.Equal(t, []string{"built data pipelines"}, m.Evidence)

	clone := m.Clone()
	assert.True(t, m.RemoveEvidence("built data pipelines"))
	assert.False(t, m.RemoveEvidence("built data pipelines"))
	assert.Empty(t, m.Evidence)
	assert.Len(t, clone.Evidence, 1)
}

func TestSummarize(t *testing.T) {
	skills := []Skill{
		&Mapped{Title: "Python", Confidence: 0.9, FrameworkSource: "ESCO"},
		&Mapped{Title: "teamwork", Confidence: 0.5, FrameworkSource: "ESCO"},
		&Claim{Name: "sourdough baking", Category: Other, Confidence: 0.8},
	}

	s := Summarize(skills)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Mapped)
	assert.Equal(t, 1, s.Custom)
	assert.Equal(t, 2, s.HighConfidence)
	assert.Equal(t, 2, s.BySource["ESCO"])
	assert.Equal(t, 1, s.ByCategory["other"])
	assert.InDelta(t, 0.7333, s.AverageConfidence, 0.001)

	assert.Equal(t, Summary{BySource: map[string]int{}, ByCategory: map[string]int{}}, Summarize(nil))
}
