package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/skill-mapper/internal/conversation"
)

func TestRunChecks(t *testing.T) {
	tests := []struct {
		name   string
		state  conversation.State
		text   string
		issues []string
	}{
		{name: "too short", state: conversation.StateContextGathering, text: "  ok  ", issues: []string{"Response too short"}},
		{name: "context needs no keywords", state: conversation.StateContextGathering, text: "I am a nurse"},
		{name: "discovery with keyword", state: conversation.StateCompetencyDiscovery, text: "I managed a team of five"},
		{name: "discovery keyword is case insensitive", state: conversation.StateCompetencyDiscovery, text: "SKILLS in welding"},
		{name: "discovery without keyword", state: conversation.StateCompetencyDiscovery, text: "the weather is nice", issues: []string{"Response lacks competency-related content"}},
		{name: "validation short and off topic", state: conversation.StateValidation, text: "nope", issues: []string{"Response too short", "Response lacks competency-related content"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := RunChecks(DefaultChecks(), tt.state, tt.text, nil)
			assert.Equal(t, len(tt.issues) == 0, v.Valid)
			assert.Equal(t, tt.issues, v.Issues)
		})
	}
}

func TestDisableByName(t *testing.T) {
	checks := DefaultChecks()
	DisableByName(checks, "phase_keywords", "free mode")

	v := RunChecks(checks, conversation.StateCompetencyDiscovery, "the weather is nice", nil)
	assert.True(t, v.Valid)

	statuses := DescribeChecks(checks)
	assert.Len(t, statuses, 2)
	assert.True(t, statuses[0].Enabled)
	assert.Equal(t, "5", statuses[0].Details["min"])
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "free mode", statuses[1].Reason)
}
