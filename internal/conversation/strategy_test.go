package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuidedStrategyMinTurns(t *testing.T) {
	g := NewGuidedStrategy(map[State]int{StateContextGathering: 3})
	assert.Equal(t, 3, g.MinTurns(StateContextGathering))
	assert.Equal(t, 3, g.MinTurns(StateCompetencyDiscovery))
	assert.Equal(t, 1, g.MinTurns(StateValidation))

	conv := New("c1", "")
	m := NewMachine(nil, nil)
	assert.False(t, g.ShouldTransition(conv))

	mustMessage(t, conv, MessageUser, "ready to go")
	assert.True(t, g.ShouldTransition(conv))

	require.NoError(t, m.Transition(conv, StateModeSelection))
	require.NoError(t, m.Transition(conv, StateContextGathering))
	for i := range 3 {
		assert.False(t, g.ShouldTransition(conv), "turn %d", i)
		mustMessage(t, conv, MessageUser, "about my work")
	}
	assert.True(t, g.ShouldTransition(conv))

	require.NoError(t, m.Finish(conv))
	assert.False(t, g.ShouldTransition(conv))
}

func TestGuidedStrategyNextQuestion(t *testing.T) {
	g := NewGuidedStrategy(nil).WithQuestions(StateInitializing, "first", "second")
	conv := New("c1", "")

	q, ok := g.NextQuestion(conv, nil)
	require.True(t, ok)
	assert.Equal(t, "first", q)

	mustMessage(t, conv, MessageUser, "hi there")
	q, _ = g.NextQuestion(conv, nil)
	assert.Equal(t, "second", q)

	mustMessage(t, conv, MessageUser, "still here")
	q, _ = g.NextQuestion(conv, map[string]any{"focus": "teamwork"})
	assert.Equal(t, "second (Please focus on teamwork.)", q)

	require.NoError(t, NewMachine(nil, nil).Finish(conv))
	_, ok = g.NextQuestion(conv, nil)
	assert.False(t, ok)
}
