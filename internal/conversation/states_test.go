package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStateNext(t *testing.T) {
	states := States()
	for i, st := range states[:len(states)-1] {
		next, err := st.Next()
		require.NoError(t, err)
		assert.Equal(t, states[i+1], next, st.String())
	}

	_, err := StateCompleted.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestStateTransitionTable(t *testing.T) {
	assert.True(t, StateValidation.CanTransitionTo(StateMapping))
	assert.True(t, StateValidation.CanTransitionTo(StateCompetencyDiscovery))
	assert.False(t, StateMapping.CanTransitionTo(StateCompetencyDiscovery))
	assert.False(t, StateInitializing.CanTransitionTo(StateContextGathering))
	assert.False(t, StateCompleted.CanTransitionTo(StateInitializing))
	assert.Empty(t, StateCompleted.Targets())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StateReview.IsTerminal())
}

func TestStateLabels(t *testing.T) {
	assert.Equal(t, "Discovering competencies", StateCompetencyDiscovery.Phase())
	assert.Equal(t, "Unknown phase", State("bogus").Phase())
	assert.Equal(t, 60.0, StateCompetencyDiscovery.Progress())
	assert.Equal(t, 100.0, StateCompleted.Progress())
	assert.True(t, StateValidation.IsAssessmentPhase())
	assert.False(t, StateReview.IsAssessmentPhase())
	assert.False(t, StateCompleted.IsActive())

	prev := 0.0
	for _, st := range States() {
		assert.Greater(t, st.Progress(), prev, st.String())
		prev = st.Progress()
	}
}

func TestParseState(t *testing.T) {
	st, err := ParseState("validation")
	require.NoError(t, err)
	assert.Equal(t, StateValidation, st)

	_, err = ParseState("done")
	require.Error(t, err)
}

func TestStateSequenceOnlyMovesForward(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		conv := New("walk", "")
		m := NewMachine(nil, nil)
		all := States()

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for range steps {
			before := conv.State()
			target := rapid.SampledFrom(all).Draw(t, "target")
			err := m.Transition(conv, target)

			if !before.CanTransitionTo(target) {
				if err == nil {
					t.Fatalf("accepted illegal transition %s -> %s", before, target)
				}
				var te *TransitionError
				if !errors.As(err, &te) || te.From != before || te.To != target {
					t.Fatalf("unexpected error %v", err)
				}
				if conv.State() != before {
					t.Fatalf("state changed on rejected transition")
				}
				continue
			}
			if err != nil {
				t.Fatalf("rejected legal transition %s -> %s: %v", before, target, err)
			}

			back := before == StateValidation && target == StateCompetencyDiscovery
			if !back && target.Index() <= before.Index() {
				t.Fatalf("state moved backwards %s -> %s", before, target)
			}
		}

		history := conv.History()
		if history[0] != StateInitializing || history[len(history)-1] != conv.State() {
			t.Fatalf("history %v does not end at %s", history, conv.State())
		}
	})
}
