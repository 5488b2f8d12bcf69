package conversation

import "fmt"

// State is a phase of the interview.
type State string

const (
	StateInitializing        State = "initializing"
	StateModeSelection       State = "mode_selection"
	StateContextGathering    State = "context_gathering"
	StateCompetencyDiscovery State = "competency_discovery"
	StateValidation          State = "validation"
	StateMapping             State = "mapping"
	StateReview              State = "review"
	StateCompleted           State = "completed"
)

var order = []State{
	StateInitializing,
	StateModeSelection,
	StateContextGathering,
	StateCompetencyDiscovery,
	StateValidation,
	StateMapping,
	StateReview,
	StateCompleted,
}

// transitions lists every legal edge. The first target is the in-sequence
// successor used by Next.
var transitions = map[State][]State{
	StateInitializing:        {StateModeSelection},
	StateModeSelection:       {StateContextGathering},
	StateContextGathering:    {StateCompetencyDiscovery},
	StateCompetencyDiscovery: {StateValidation},
	StateValidation:          {StateMapping, StateCompetencyDiscovery},
	StateMapping:             {StateReview},
	StateReview:              {StateCompleted},
	StateCompleted:           {},
}

var phases = map[State]string{
	StateInitializing:        "Initializing conversation",
	StateModeSelection:       "Selecting assessment mode",
	StateContextGathering:    "Gathering background information",
	StateCompetencyDiscovery: "Discovering competencies",
	StateValidation:          "Validating competencies",
	StateMapping:             "Mapping to framework",
	StateReview:              "Reviewing results",
	StateCompleted:           "Assessment completed",
}

var progress = map[State]float64{
	StateInitializing:        10,
	StateModeSelection:       20,
	StateContextGathering:    35,
	StateCompetencyDiscovery: 60,
	StateValidation:          75,
	StateMapping:             85,
	StateReview:              95,
	StateCompleted:           100,
}

// States returns all states in interview order.
func States() []State {
	out := make([]State, len(order))
	copy(out, order)
	return out
}

// ParseState converts a stored value back to a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown conversation state %q", s)
	}
	return st, nil
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s State) String() string { return string(s) }

// Next returns the in-sequence successor.
func (s State) Next() (State, error) {
	targets, ok := transitions[s]
	if !ok || len(targets) == 0 {
		return s, &TransitionError{From: s}
	}
	return targets[0], nil
}

func (s State) CanTransitionTo(target State) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Targets returns the legal successors of s.
func (s State) Targets() []State {
	targets := transitions[s]
	out := make([]State, len(targets))
	copy(out, targets)
	return out
}

// Index is the position of s in interview order, or -1.
func (s State) Index() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Phase is the display label of the state.
func (s State) Phase() string {
	if label, ok := phases[s]; ok {
		return label
	}
	return "Unknown phase"
}

func (s State) IsActive() bool { return s != StateCompleted }

// IsAssessmentPhase reports whether skills are being discussed or mapped.
func (s State) IsAssessmentPhase() bool {
	switch s {
	case StateCompetencyDiscovery, StateValidation, StateMapping:
		return true
	default:
		return false
	}
}

// Progress is the completion percentage shown to the user.
func (s State) Progress() float64 { return progress[s] }

func (s State) IsTerminal() bool { return len(transitions[s]) == 0 && s.Valid() }
